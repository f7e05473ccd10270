package schema

import (
	"slices"
	"sort"
)

// ValidateHeaders matches each field's header against headers by exact
// string equality and returns where each field's value lives.
//
// Extra headers are ignored, so inputs may reorder columns or carry columns
// the schema does not use. A field whose header is absent, or present more
// than once, is an error; all such fields are reported in one
// *HeaderMismatchError.
func (s *Schema) ValidateHeaders(headers []string) (FieldMap, error) {
	fm := make(FieldMap, len(s.fields))
	var missing, duplicated []Field

	for i, f := range s.fields {
		first := slices.Index(headers, f.Header)
		switch {
		case first < 0:
			missing = append(missing, f)
			fm[i] = NoColumn
		case lastIndex(headers, f.Header) != first:
			duplicated = append(duplicated, f)
			fm[i] = NoColumn
		default:
			fm[i] = first
		}
	}

	if len(missing) > 0 || len(duplicated) > 0 {
		return nil, &HeaderMismatchError{
			Schema:     s.id,
			Headers:    slices.Clone(headers),
			Missing:    missing,
			Duplicated: duplicated,
		}
	}
	return fm, nil
}

func lastIndex(xs []string, x string) int {
	for i := len(xs) - 1; i >= 0; i-- {
		if xs[i] == x {
			return i
		}
	}
	return -1
}

// IDHash turns a positional row into a Record keyed by field id, using fm
// to locate each field's value.
//
// fm must have one entry per field, none of them NoColumn, no two of them
// equal, and all within row's bounds. row must not be empty. Violations are
// returned as *RowCodecError.
func (s *Schema) IDHash(row []string, fm FieldMap) (Record, error) {
	return idHash(s, row, fm)
}

// IDHashValues is IDHash for rows of arbitrary values, such as decoded JSON.
func (s *Schema) IDHashValues(row []any, fm FieldMap) (Record, error) {
	return idHash(s, row, fm)
}

func idHash[V any](s *Schema, row []V, fm FieldMap) (Record, error) {
	if len(fm) != len(s.fields) {
		return nil, codecErrorf(s.id, "field map must have %d elements, got %d", len(s.fields), len(fm))
	}
	if len(row) == 0 {
		return nil, codecErrorf(s.id, "incoming data has zero data fields")
	}

	rec := make(Record, len(s.fields))
	used := make([]bool, len(row))

	for i, f := range s.fields {
		ix := fm[i]
		if ix == NoColumn {
			return nil, codecErrorf(s.id, "nil field index for field %s", f.ID)
		}
		if ix < 0 || ix >= len(row) {
			return nil, codecErrorf(s.id, "incoming data has %d fields so does not include the field index %d (field %s)",
				len(row), ix, f.ID)
		}
		if used[ix] {
			return nil, codecErrorf(s.id, "duplicate field index %d (field %s)", ix, f.ID)
		}
		used[ix] = true
		rec[f.ID] = row[ix]
	}

	return rec, nil
}

// Row encodes rec as a positional row in canonical field order.
//
// rec must hold exactly the schema's field ids: a missing id or an
// unrecognised key is a *RowCodecError. rec is not modified.
func (s *Schema) Row(rec Record) ([]any, error) {
	row := make([]any, len(s.fields))
	var missing []string

	for i, f := range s.fields {
		v, ok := rec[f.ID]
		if !ok {
			missing = append(missing, f.ID)
			continue
		}
		row[i] = v
	}
	if len(missing) > 0 {
		return nil, codecErrorf(s.id, "no value for fields %q", missing)
	}

	if len(rec) > len(s.fields) {
		var extra []string
		for k := range rec {
			if _, ok := s.byID[k]; !ok {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return nil, codecErrorf(s.id, "these hash keys do not match any field IDs: %q", extra)
	}

	return row, nil
}
