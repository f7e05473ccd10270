package schema

import (
	"fmt"
	"slices"
)

// Record is one row keyed by field id. It is the representation observers
// consume and produce. A nil value is a null.
type Record map[string]any

// FieldMap holds, for each schema field in order, the index of the input
// column carrying its value. NoColumn marks a field with no column.
type FieldMap []int

// NoColumn is the FieldMap entry for a field that has no input column.
const NoColumn = -1

// Definition is the literal form a Schema is built from.
type Definition struct {
	ID          string
	Name        string // Defaults to ID
	Version     string
	Description string
	Comment     string
	PrimaryKey  []string // Field ids, in key order
	Fields      []Field
}

// Schema is an ordered, named set of fields with an optional composite
// primary key. It is immutable once built.
type Schema struct {
	id          string
	name        string
	version     string
	description string
	comment     string
	fields      []Field
	primaryKey  []string

	byID    map[string]int
	ids     []string
	headers []string
}

// New builds a Schema from def. Fields are re-indexed 0..n-1 in the order
// given. All definition problems are reported together in a *DefinitionError.
func New(def Definition) (*Schema, error) {
	var problems []string

	if def.ID == "" {
		problems = append(problems, "schema id is required")
	}

	s := &Schema{
		id:          def.ID,
		name:        def.Name,
		version:     def.Version,
		description: def.Description,
		comment:     def.Comment,
		fields:      make([]Field, len(def.Fields)),
		byID:        make(map[string]int, len(def.Fields)),
		ids:         make([]string, len(def.Fields)),
		headers:     make([]string, len(def.Fields)),
	}
	if s.name == "" {
		s.name = def.ID
	}

	for i, f := range def.Fields {
		if f.ID == "" {
			problems = append(problems, fmt.Sprintf("field with index %d has no id", i))
		} else if prev, dup := s.byID[f.ID]; dup {
			problems = append(problems, fmt.Sprintf("field id %q is used at index %d and %d", f.ID, prev, i))
		} else {
			s.byID[f.ID] = i
		}
		s.fields[i] = f.AddIndex(i)
		s.ids[i] = f.ID
		s.headers[i] = f.Header
	}

	var invalid []string
	seen := make(map[string]bool, len(def.PrimaryKey))
	for _, id := range def.PrimaryKey {
		if _, ok := s.byID[id]; !ok {
			invalid = append(invalid, id)
			continue
		}
		if seen[id] {
			problems = append(problems, fmt.Sprintf("primary key lists field %q more than once", id))
		}
		seen[id] = true
	}
	if len(invalid) > 0 {
		problems = append(problems, fmt.Sprintf("primary key contains these invalid field IDs %q", invalid))
	}
	s.primaryKey = slices.Clone(def.PrimaryKey)

	if len(problems) > 0 {
		return nil, &DefinitionError{Schema: def.ID, Problems: problems}
	}
	return s, nil
}

// MustNew is like New but panics on error. Use it for package-level literals.
func MustNew(def Definition) *Schema {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) ID() string          { return s.id }
func (s *Schema) Name() string        { return s.name }
func (s *Schema) Version() string     { return s.version }
func (s *Schema) Description() string { return s.description }
func (s *Schema) Comment() string     { return s.comment }

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// Fields returns a copy of the fields in canonical order.
func (s *Schema) Fields() []Field { return slices.Clone(s.fields) }

// FieldIDs returns the field ids in canonical order.
func (s *Schema) FieldIDs() []string { return slices.Clone(s.ids) }

// FieldHeaders returns the field headers in canonical order.
func (s *Schema) FieldHeaders() []string { return slices.Clone(s.headers) }

// PrimaryKey returns the primary key field ids. Empty means no key.
func (s *Schema) PrimaryKey() []string { return slices.Clone(s.primaryKey) }

// HasPrimaryKey reports whether the schema declares a primary key.
func (s *Schema) HasPrimaryKey() bool { return len(s.primaryKey) > 0 }

// Field looks up a field by id.
func (s *Schema) Field(id string) (Field, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// ToMap returns the field headers keyed by field id.
func (s *Schema) ToMap() map[string]string {
	m := make(map[string]string, len(s.fields))
	for _, f := range s.fields {
		m[f.ID] = f.Header
	}
	return m
}

// Definition returns the literal form of s, suitable for New or for saving.
func (s *Schema) Definition() Definition {
	return Definition{
		ID:          s.id,
		Name:        s.name,
		Version:     s.version,
		Description: s.description,
		Comment:     s.comment,
		PrimaryKey:  s.PrimaryKey(),
		Fields:      s.Fields(),
	}
}

// IdentityFieldMap returns the FieldMap for rows already in canonical order.
func (s *Schema) IdentityFieldMap() FieldMap {
	fm := make(FieldMap, len(s.fields))
	for i := range fm {
		fm[i] = i
	}
	return fm
}

// AssertSupersetOf returns nil if s is a structural superset of other: the
// primary keys are identical (same ids, same order) and every field id of
// other exists in s. Headers are labels and may differ.
func (s *Schema) AssertSupersetOf(other *Schema) error {
	if !slices.Equal(s.primaryKey, other.primaryKey) {
		return &IncompatibleError{
			Schema: s.id,
			Other:  other.id,
			Reason: fmt.Sprintf("its primary key %q does not match %q", s.primaryKey, other.primaryKey),
		}
	}

	var missing []string
	for _, f := range other.fields {
		if _, ok := s.byID[f.ID]; !ok {
			missing = append(missing, f.ID)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &IncompatibleError{
		Schema:  s.id,
		Other:   other.id,
		Reason:  fmt.Sprintf("these fields are absent from it: %q", missing),
		Missing: missing,
	}
}
