package core

// pgvalues.go coerces output cells into pgtype values for COPY.
//
// Cells arrive as whatever the observer emitted. Each is rendered with the
// same rules as CSV output and then parsed for the target column, so a
// table load and a CSV export of one conversion agree. Unparseable cells
// become NULL (Valid=false) rather than failing the batch.

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ColumnKind names the Postgres type a COPY column is coerced to.
type ColumnKind string

const (
	ColumnText    ColumnKind = "text"
	ColumnNumeric ColumnKind = "numeric"
	ColumnDate    ColumnKind = "date"
	ColumnBool    ColumnKind = "bool"
	ColumnUUID    ColumnKind = "uuid"
)

// ParseColumnKind parses a column kind name. The empty string is text.
func ParseColumnKind(s string) (ColumnKind, error) {
	switch k := ColumnKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return ColumnText, nil
	case ColumnText, ColumnNumeric, ColumnDate, ColumnBool, ColumnUUID:
		return k, nil
	}
	return "", fmt.Errorf("unknown column kind %q", s)
}

// ParseColumnKinds parses a list such as "id:uuid,amount:numeric" into
// column kinds by field id.
func ParseColumnKinds(s string) (map[string]ColumnKind, error) {
	kinds := make(map[string]ColumnKind)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("column kind %q: expected field:kind", part)
		}
		k, err := ParseColumnKind(name)
		if err != nil {
			return nil, err
		}
		kinds[strings.TrimSpace(id)] = k
	}
	return kinds, nil
}

func (k ColumnKind) coerce(v any) any {
	if v == nil {
		return nil
	}
	s := formatValue(v)
	switch k {
	case ColumnNumeric:
		return ToPgNumeric(s)
	case ColumnDate:
		return ToPgDate(s)
	case ColumnBool:
		return ToPgBool(s)
	case ColumnUUID:
		return ToPgUUID(s)
	default:
		return ToPgText(s)
	}
}

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot sets how far into the future a two-digit year may
// land before it is moved back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
		time.RFC3339,
	}
)

// ToPgText returns NULL for an empty or blank string.
func ToPgText(s string) pgtype.Text {
	if strings.TrimSpace(s) == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate accepts ISO, US and a few written date layouts.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}
	return pgtype.Date{}
}

// ToPgNumeric strips currency symbols and thousands separators and reads
// "(12.50)" as negative.
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{}
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// ToPgBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ToPgBool(s string) pgtype.Bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "false", "f", "no", "n", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	}
	return pgtype.Bool{}
}

// ToPgUUID returns NULL unless s parses as a UUID.
func ToPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}
