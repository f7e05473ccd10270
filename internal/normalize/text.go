package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	floatRe     = regexp.MustCompile(`^[+-]?\d+[.]\d+$`)
	addrSepRe   = regexp.MustCompile(`[;,](\s*[;,])+`)
	addrTrailRe = regexp.MustCompile(`[\s,;]*$`)
	paramRe     = regexp.MustCompile(`(?i)[^a-z0-9\-_]+`)
)

// Float returns val unchanged if it is a decimal number with a fractional
// part, such as "-1.5".
func Float(val string) (string, error) {
	if !floatRe.MatchString(val) {
		return "", malformed("a float", val)
	}
	return val, nil
}

// Addr cleans each address part of repeated separators and trailing
// punctuation and joins the non-empty parts with ", ".
func Addr(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = addrSepRe.ReplaceAllString(strings.TrimSpace(p), ",")
		p = addrTrailRe.ReplaceAllString(p, "")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// Transliterate strips diacritics, so "Café" becomes "Cafe".
func Transliterate(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Parameterize turns s into a lower-case slug: diacritics are stripped,
// runs of anything but letters, digits, '-' and '_' become sep, and
// repeated or surrounding separators are removed.
func Parameterize(s, sep string) string {
	p := paramRe.ReplaceAllString(Transliterate(s), sep)
	if sep != "" {
		q := regexp.QuoteMeta(sep)
		p = regexp.MustCompile(`(?:`+q+`){2,}`).ReplaceAllString(p, sep)
		p = regexp.MustCompile(`^`+q+`|`+q+`$`).ReplaceAllString(p, "")
	}
	return strings.ToLower(p)
}

// Identifier turns s into a snake_case identifier, as used for vocabulary
// terms and generated field ids.
func Identifier(s string) string {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	return Parameterize(s, "_")
}

// Clean strips spreadsheet formula wrappers and surrounding quotes from a
// cell, so `="00123"` becomes "00123".
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	return strings.Trim(s, `"'`)
}
