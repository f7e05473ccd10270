// Package normalize cleans up the free-text values found in contributed
// spreadsheets: email addresses, websites, social media links, numbers,
// addresses, multi-value cells, country codes and US states.
//
// Functions that can reject their input return ErrMalformed (wrapped with the
// offending value); callers decide whether to substitute a default or fail.
// Named normalizers are available through Lookup for data-driven observers.
package normalize

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformed is wrapped by every normalizer that rejects its input.
var ErrMalformed = errors.New("malformed value")

func malformed(kind, val string) error {
	return fmt.Errorf("%w: this doesn't look like %s: %q", ErrMalformed, kind, val)
}

// Func normalizes a single value.
type Func func(string) (string, error)

var funcs = map[string]Func{
	"trim":         func(s string) (string, error) { return strings.TrimSpace(s), nil },
	"lower":        func(s string) (string, error) { return strings.ToLower(s), nil },
	"upper":        func(s string) (string, error) { return strings.ToUpper(s), nil },
	"clean":        func(s string) (string, error) { return Clean(s), nil },
	"email":        Email,
	"url":          func(s string) (string, error) { return URL(s, true) },
	"facebook":     func(s string) (string, error) { return Facebook(s) },
	"twitter":      func(s string) (string, error) { return Twitter(s) },
	"float":        Float,
	"parameterize": func(s string) (string, error) { return Parameterize(s, "-"), nil },
	"identifier":   func(s string) (string, error) { return Identifier(s), nil },
	"country":      CountryName,
	"us_state":     func(s string) (string, error) { return USState(s), nil },
}

// Lookup returns the normalizer registered under name.
func Lookup(name string) (Func, bool) {
	fn, ok := funcs[name]
	return fn, ok
}

// Names lists the registered normalizer names in order.
func Names() []string {
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chain applies fns in order, stopping at the first error.
func Chain(fns ...Func) Func {
	return func(s string) (string, error) {
		var err error
		for _, fn := range fns {
			if s, err = fn(s); err != nil {
				return "", err
			}
		}
		return s, nil
	}
}
