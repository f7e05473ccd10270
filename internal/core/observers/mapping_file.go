package observers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/seconvert/internal/normalize"
)

// Mapping is a declarative observer read from a YAML mapping file:
//
//	name: orgs-to-directory
//	from: raw_orgs
//	to: directory
//	fields:
//	  id:
//	    source: org_id
//	  address:
//	    source: [street, town, postcode]
//	  website:
//	    source: homepage
//	    normalize: url
//	    default: ""
//	  kind:
//	    value: co-op
//
// A field whose source is a list is filled with the non-empty source
// values joined as an address.
type Mapping struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	From        string               `yaml:"from,omitempty"`
	To          string               `yaml:"to,omitempty"`
	Fields      map[string]FieldRule `yaml:"fields"`
}

// FieldRule says how one destination field is filled.
type FieldRule struct {
	Source    StringOrArray `yaml:"source,omitempty"`
	Value     *string       `yaml:"value,omitempty"`
	Normalize StringOrArray `yaml:"normalize,omitempty"`
	Each      bool          `yaml:"each,omitempty"` // normalize each value of a multi-value cell
	Default   *string       `yaml:"default,omitempty"`
	Strict    bool          `yaml:"strict,omitempty"` // fail the row instead of using the default
}

// StringOrArray accepts either a single string or a list of strings.
type StringOrArray []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrArray) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var str string
		if err := node.Decode(&str); err != nil {
			return err
		}
		if str != "" {
			*s = StringOrArray{str}
		} else {
			*s = StringOrArray{}
		}
		return nil
	case yaml.SequenceNode:
		var arr []string
		if err := node.Decode(&arr); err != nil {
			return err
		}
		*s = arr
		return nil
	default:
		return fmt.Errorf("expected string or array, got %v", node.Kind)
	}
}

// MarshalYAML writes a single string when s has one element.
func (s StringOrArray) MarshalYAML() (any, error) {
	if len(s) == 1 {
		return s[0], nil
	}
	return []string(s), nil
}

// LoadMapping reads and checks a mapping file. A mapping without a name
// is named after the file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}
	m, err := ParseMapping(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// ParseMapping parses and checks mapping YAML.
func ParseMapping(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the rules without reference to any schema. Every
// problem is reported.
func (m *Mapping) Validate() error {
	if len(m.Fields) == 0 {
		return errors.New("invalid mapping file: no fields")
	}

	var errs []error
	for _, id := range m.fieldIDs() {
		r := m.Fields[id]
		switch {
		case len(r.Source) == 0 && r.Value == nil:
			errs = append(errs, fmt.Errorf("field %q: needs a source or a value", id))
		case len(r.Source) > 0 && r.Value != nil:
			errs = append(errs, fmt.Errorf("field %q: has both a source and a value", id))
		}
		if r.Each && len(r.Source) > 1 {
			errs = append(errs, fmt.Errorf("field %q: each applies to a single source", id))
		}
		for _, name := range r.Normalize {
			if _, ok := normalize.Lookup(name); !ok {
				errs = append(errs, fmt.Errorf("field %q: unknown normalizer %q (have %s)",
					id, name, strings.Join(normalize.Names(), ", ")))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid mapping file: %w", errors.Join(errs...))
	}
	return nil
}

// Save writes m as YAML.
func (m *Mapping) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mapping file %s: %w", path, err)
	}
	return nil
}

func (m *Mapping) fieldIDs() []string {
	ids := make([]string, 0, len(m.Fields))
	for id := range m.Fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
