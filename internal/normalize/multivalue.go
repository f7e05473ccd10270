package normalize

import (
	"fmt"
	"strings"
)

// Default multi-value cell syntax: "a;'b;c';d" holds three values.
const (
	DefaultDelim = ';'
	DefaultQuote = '\''
)

// MultiValue describes how several values are packed into one cell. A
// value containing the delimiter or quote is quoted, and a quote inside a
// quoted value is doubled.
type MultiValue struct {
	Delim rune
	Quote rune
}

// DefaultMultiValue is the ';' and '\'' syntax.
var DefaultMultiValue = MultiValue{Delim: DefaultDelim, Quote: DefaultQuote}

func (m MultiValue) orDefault() MultiValue {
	if m.Delim == 0 {
		m.Delim = DefaultDelim
	}
	if m.Quote == 0 {
		m.Quote = DefaultQuote
	}
	return m
}

// Split returns the unescaped values packed into cell. An empty cell holds
// no values.
func (m MultiValue) Split(cell string) ([]string, error) {
	m = m.orDefault()
	if cell == "" {
		return nil, nil
	}

	var (
		vals    []string
		cur     strings.Builder
		quoted  bool
		started bool // current value opened with a quote
		closed  bool // quoted value finished, only a delimiter may follow
	)
	rs := []rune(cell)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case quoted && r == m.Quote:
			if i+1 < len(rs) && rs[i+1] == m.Quote {
				cur.WriteRune(r)
				i++
				continue
			}
			quoted, closed = false, true
		case quoted:
			cur.WriteRune(r)
		case r == m.Delim:
			vals = append(vals, cur.String())
			cur.Reset()
			started, closed = false, false
		case closed:
			return nil, fmt.Errorf("%w: unexpected %q after quoted value in %q", ErrMalformed, r, cell)
		case r == m.Quote && !started && cur.Len() == 0:
			quoted, started = true, true
		default:
			cur.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrMalformed, cell)
	}
	return append(vals, cur.String()), nil
}

// Join packs vals into one cell, quoting where needed.
func (m MultiValue) Join(vals []string) string {
	m = m.orDefault()
	special := string([]rune{m.Delim, m.Quote, '\n', '\r'})
	quote := string(m.Quote)

	parts := make([]string, len(vals))
	for i, v := range vals {
		if strings.ContainsAny(v, special) {
			v = quote + strings.ReplaceAll(v, quote, quote+quote) + quote
		}
		parts[i] = v
	}
	return strings.Join(parts, string(m.Delim))
}

// Map splits cell, applies fn to each trimmed value and joins the results
// with out's syntax. Values for which fn returns false are dropped.
func (m MultiValue) Map(cell string, out MultiValue, fn func(string) (string, bool)) (string, error) {
	vals, err := m.Split(cell)
	if err != nil {
		return "", err
	}
	mapped := make([]string, 0, len(vals))
	for _, v := range vals {
		if nv, ok := fn(strings.TrimSpace(v)); ok {
			mapped = append(mapped, nv)
		}
	}
	return out.Join(mapped), nil
}
