package schema

// file.go reads and writes schema definition files.
//
// Two forms are supported:
//
//   - CSV: one row per field under the header id,header,description,comment,primary.
//     The schema id is the file's base name and the version is the load date.
//   - YAML: a mapping with id, name, version, description, comment,
//     primary_key and fields (each with id, header, desc, comment).

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileKind selects a definition file format.
type FileKind string

const (
	KindCSV  FileKind = "csv"
	KindYAML FileKind = "yaml"
)

// CSVHeaders is the header row of a CSV schema definition.
var CSVHeaders = []string{"id", "header", "description", "comment", "primary"}

// now is swapped in tests to pin the version stamped on CSV definitions.
var now = time.Now

// KindFromPath infers the definition format from a file extension and
// returns it along with the file's base name (without extension).
func KindFromPath(path string) (FileKind, string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return KindYAML, base, nil
	case ".csv":
		return KindCSV, base, nil
	default:
		return "", base, fmt.Errorf("unknown schema file extension %q, specify the type explicitly", ext)
	}
}

// LoadFile loads a schema definition file. If kind is empty it is inferred
// from the extension.
func LoadFile(path string, kind FileKind) (*Schema, error) {
	inferred, base, err := KindFromPath(path)
	if kind == "" {
		if err != nil {
			return nil, err
		}
		kind = inferred
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file %s: %w", path, err)
	}
	defer f.Close()

	var s *Schema
	switch kind {
	case KindYAML:
		s, err = ReadYAML(f)
	case KindCSV:
		s, err = ReadCSV(f, base)
	default:
		return nil, fmt.Errorf("unknown schema file type %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return s, nil
}

// SaveFile writes s to path. If kind is empty it is inferred from the
// extension.
func (s *Schema) SaveFile(path string, kind FileKind) (err error) {
	if kind == "" {
		kind, _, err = KindFromPath(path)
		if err != nil {
			return err
		}
	}
	if kind != KindYAML && kind != KindCSV {
		return fmt.Errorf("unknown schema file type %q", kind)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create schema file %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if kind == KindYAML {
		return s.WriteYAML(f)
	}
	return s.WriteCSV(f)
}

// ReadCSV parses a CSV definition. The header row must hold exactly the
// CSVHeaders columns, in any order. A primary column of "true" (any case)
// adds the field to the primary key, in row order.
func ReadCSV(r io.Reader, id string) (*Schema, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty schema definition")
		}
		return nil, fmt.Errorf("read schema header: %w", err)
	}

	got := slices.Clone(header)
	want := slices.Clone(CSVHeaders)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return nil, fmt.Errorf("unexpected CSV headers: expected %q, got %q", CSVHeaders, header)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}

	def := Definition{
		ID:      id,
		Version: now().Format("20060102"),
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read schema row %d: %w", line, err)
		}

		f := Field{
			ID:          rec[col["id"]],
			Header:      rec[col["header"]],
			Description: rec[col["description"]],
			Comment:     rec[col["comment"]],
		}
		if strings.EqualFold(strings.TrimSpace(rec[col["primary"]]), "true") {
			def.PrimaryKey = append(def.PrimaryKey, f.ID)
		}
		def.Fields = append(def.Fields, f)
	}

	return New(def)
}

// WriteCSV writes s as a CSV definition.
func (s *Schema) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeaders); err != nil {
		return err
	}
	for _, f := range s.fields {
		primary := slices.Contains(s.primaryKey, f.ID)
		if err := cw.Write([]string{f.ID, f.Header, f.Description, f.Comment, strconv.FormatBool(primary)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// yamlSchema is the on-disk YAML layout.
type yamlSchema struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name,omitempty"`
	Version     string      `yaml:"version,omitempty"`
	Description string      `yaml:"description,omitempty"`
	Comment     string      `yaml:"comment,omitempty"`
	PrimaryKey  []string    `yaml:"primary_key,omitempty"`
	Fields      []yamlField `yaml:"fields"`
}

type yamlField struct {
	ID      string `yaml:"id"`
	Header  string `yaml:"header"`
	Desc    string `yaml:"desc,omitempty"`
	Comment string `yaml:"comment,omitempty"`
}

// ReadYAML parses a YAML definition.
func ReadYAML(r io.Reader) (*Schema, error) {
	var ys yamlSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ys); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty schema definition")
		}
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}

	def := Definition{
		ID:          ys.ID,
		Name:        ys.Name,
		Version:     ys.Version,
		Description: ys.Description,
		Comment:     ys.Comment,
		PrimaryKey:  ys.PrimaryKey,
		Fields:      make([]Field, len(ys.Fields)),
	}
	for i, f := range ys.Fields {
		def.Fields[i] = Field{ID: f.ID, Header: f.Header, Description: f.Desc, Comment: f.Comment}
	}
	return New(def)
}

// WriteYAML writes s as a YAML definition.
func (s *Schema) WriteYAML(w io.Writer) error {
	ys := yamlSchema{
		ID:          s.id,
		Name:        s.name,
		Version:     s.version,
		Description: s.description,
		Comment:     s.comment,
		PrimaryKey:  s.PrimaryKey(),
		Fields:      make([]yamlField, len(s.fields)),
	}
	for i, f := range s.fields {
		ys.Fields[i] = yamlField{ID: f.ID, Header: f.Header, Desc: f.Description, Comment: f.Comment}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ys); err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	return enc.Close()
}
