package normalize

import (
	"regexp"
	"strings"
)

var (
	emailRe      = regexp.MustCompile(`(?i)^[\w+\-.]+@[a-z\d\-.]+\.[a-z]+$`)
	schemeRe     = regexp.MustCompile(`^(https?):/+(.*)$`)
	hostPrefixRe = regexp.MustCompile(`^([\w-]+\.)+([\w-]+)(:\d+)?(/\S+)*/?`)
	hostFullRe   = regexp.MustCompile(`^([\w-]+\.)+([\w-]+)(:\d+)?(/\S+)*/?$`)
	slashesRe    = regexp.MustCompile(`/+`)
	queryRe      = regexp.MustCompile(`[?#].*$`)
	trailingRe   = regexp.MustCompile(`/+$`)
	facebookRe   = regexp.MustCompile(`^https?://([\w-]+\.)?facebook\.com/(.+)$`)
	fbMeRe       = regexp.MustCompile(`^https?://([\w-]+\.)?fb\.me/(.+)$`)
	twitterRe    = regexp.MustCompile(`^https?://([\w-]+\.)?twitter\.com/(.+)$`)
)

const (
	// FacebookBase prefixes every normalized Facebook link.
	FacebookBase = "https://www.facebook.com/"
	// TwitterBase prefixes every normalized Twitter link.
	TwitterBase = "https://twitter.com/"
)

// Email returns val unchanged if it looks like an email address.
func Email(val string) (string, error) {
	if !emailRe.MatchString(val) {
		return "", malformed("an email", val)
	}
	return val, nil
}

// URL lower-cases s, defaults the scheme to http and collapses repeated
// slashes. With full set the whole string must look like a URL; otherwise
// only a leading host name is required and trailing text is dropped.
func URL(s string, full bool) (string, error) {
	val := strings.ToLower(strings.TrimSpace(s))

	scheme, rest := "http", val
	if m := schemeRe.FindStringSubmatch(val); m != nil {
		scheme, rest = m[1], m[2]
	}

	re := hostPrefixRe
	if full {
		re = hostFullRe
	}
	m := re.FindString(rest)
	if m == "" {
		return "", malformed("a website", s)
	}
	return scheme + "://" + slashesRe.ReplaceAllString(m, "/"), nil
}

// Facebook returns the first item that is a Facebook page link, rewritten
// onto FacebookBase. A bare facebook.com link with no path is not a page.
func Facebook(items ...string) (string, error) {
	return social("a Facebook page", FacebookBase, items, facebookRe, fbMeRe)
}

// Twitter returns the first item that is a Twitter profile link, rewritten
// onto TwitterBase.
func Twitter(items ...string) (string, error) {
	return social("a Twitter profile", TwitterBase, items, twitterRe)
}

func social(kind, base string, items []string, patterns ...*regexp.Regexp) (string, error) {
	for _, item := range items {
		u, err := URL(item, true)
		if err != nil {
			continue
		}
		u = queryRe.ReplaceAllString(u, "")
		u = trailingRe.ReplaceAllString(u, "")
		for _, re := range patterns {
			if m := re.FindStringSubmatch(u); m != nil {
				return base + m[2], nil
			}
		}
	}
	return "", malformed(kind, strings.Join(items, ";"))
}
