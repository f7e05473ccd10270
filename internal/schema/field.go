// Package schema defines the named, ordered column layouts that tabular data
// is validated against and converted between.
//
// A [Schema] is an ordered list of [Field] values plus an optional composite
// primary key. It is built once, from a literal [Definition] or a definition
// file (CSV or YAML), and is read-only afterwards. The schema provides the
// codecs used by the converter:
//
//   - [Schema.ValidateHeaders]: header row -> [FieldMap]
//   - [Schema.IDHash]: positional row + FieldMap -> [Record] keyed by field id
//   - [Schema.Row]: Record -> positional row in canonical field order
//
// Record encoding is closed-world: a Record missing a field, or carrying a key
// the schema does not define, is rejected.
package schema

// Field describes one column of a Schema.
//
// Fields are plain values. Schema accessors hand out copies, so nothing a
// caller does to a Field changes the Schema it came from.
type Field struct {
	ID          string // Unique within the owning schema
	Index       int    // Position within the owning schema, -1 if unplaced
	Header      string // Header expected in (and written to) tabular files
	Description string // Optional one-line description
	Comment     string // Optional free-form comment
}

// NewField returns an unplaced Field with the given id and header.
func NewField(id, header string) Field {
	return Field{ID: id, Index: -1, Header: header}
}

// AddIndex returns a copy of f positioned at index. f itself is unchanged.
func (f Field) AddIndex(index int) Field {
	f.Index = index
	return f
}
