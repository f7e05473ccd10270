package observers

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/schema"
)

func rawOrgs() *schema.Schema {
	return schema.MustNew(schema.Definition{
		ID:         "raw_orgs",
		PrimaryKey: []string{"id"},
		Fields: []schema.Field{
			schema.NewField("id", "Org ID"),
			schema.NewField("name", "Organisation"),
			schema.NewField("street", "Street"),
			schema.NewField("town", "Town"),
			schema.NewField("email", "Email"),
			schema.NewField("countries", "Countries"),
		},
	})
}

func directory() *schema.Schema {
	return schema.MustNew(schema.Definition{
		ID:         "directory",
		PrimaryKey: []string{"id"},
		Fields: []schema.Field{
			schema.NewField("id", "Identifier"),
			schema.NewField("name", "Name"),
		},
	})
}

const rawCSV = "Org ID,Organisation,Street,Town,Email,Countries\n" +
	"1,Acme,\"1 High St;,\",Leeds,info@acme.coop,gb;fr\n" +
	"2,Beta,,York,not-an-email,zz1\n"

func convert(t *testing.T, from, to *schema.Schema, obs core.Observer, input string) (string, error) {
	t.Helper()
	c, err := core.NewConverter(core.Options{
		From:     from,
		To:       to,
		Observer: obs,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}

	var out bytes.Buffer
	err = c.EachRow(strings.NewReader(input), &out)
	return out.String(), err
}

func TestIdentityRegistered(t *testing.T) {
	def, ok := core.Get(IdentityKey)
	if !ok {
		t.Fatal("identity observer not registered")
	}
	if def.Description == "" {
		t.Error("identity observer has no description")
	}
}

func TestIdentity(t *testing.T) {
	obs, err := core.NewObserver(IdentityKey, rawOrgs(), directory())
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	out, err := convert(t, rawOrgs(), directory(), obs, rawCSV)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if want := "Identifier,Name\n1,Acme\n2,Beta\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestIdentityRequiresSuperset(t *testing.T) {
	_, err := NewIdentity(directory(), rawOrgs())

	var incompatible *schema.IncompatibleError
	if !errors.As(err, &incompatible) {
		t.Fatalf("err = %v, want *schema.IncompatibleError", err)
	}
	if !slices.Contains(incompatible.Missing, "street") {
		t.Errorf("Missing = %q, want street included", incompatible.Missing)
	}
}

const directoryMapping = `
name: raw-to-directory
from: raw_orgs
to: directory_full
fields:
  id:
    source: id
  name:
    source: name
    normalize: [trim, upper]
  address:
    source: [street, town]
  email:
    source: email
    normalize: email
    default: unknown
  countries:
    source: countries
    normalize: country
    each: true
  kind:
    value: co-op
`

func directoryFull() *schema.Schema {
	return schema.MustNew(schema.Definition{
		ID:         "directory_full",
		PrimaryKey: []string{"id"},
		Fields: []schema.Field{
			schema.NewField("id", "Identifier"),
			schema.NewField("name", "Name"),
			schema.NewField("address", "Address"),
			schema.NewField("email", "Email"),
			schema.NewField("countries", "Countries"),
			schema.NewField("kind", "Kind"),
		},
	})
}

func mustParseMapping(t *testing.T, data string) *Mapping {
	t.Helper()
	m, err := ParseMapping([]byte(data))
	if err != nil {
		t.Fatalf("ParseMapping: %v", err)
	}
	return m
}

func assertContainsAll(t *testing.T, err error, wants ...string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error containing %q", wants)
	}
	for _, want := range wants {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err, want)
		}
	}
}

func TestParseMapping(t *testing.T) {
	m := mustParseMapping(t, directoryMapping)

	if m.Name != "raw-to-directory" || len(m.Fields) != 6 {
		t.Errorf("name, fields = %q, %d; want raw-to-directory, 6", m.Name, len(m.Fields))
	}
	if got := m.Fields["address"].Source; !slices.Equal(got, StringOrArray{"street", "town"}) {
		t.Errorf("address source = %q", got)
	}
	if got := m.Fields["email"].Normalize; !slices.Equal(got, StringOrArray{"email"}) {
		t.Errorf("email normalize = %q", got)
	}
	if v := m.Fields["kind"].Value; v == nil || *v != "co-op" {
		t.Errorf("kind value = %v, want co-op", v)
	}
}

func TestParseMappingErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{"empty", "name: x\n", []string{"no fields"}},
		{"bad yaml", "fields: [", []string{"failed to parse mapping file"}},
		{
			"every problem reported",
			"fields:\n  a: {}\n  b: {source: x, value: y}\n  c: {source: x, normalize: [shout]}\n  d: {source: [x, y], each: true}\n",
			[]string{
				`field "a": needs a source or a value`,
				`field "b": has both a source and a value`,
				`unknown normalizer "shout"`,
				`field "d": each applies to a single source`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMapping([]byte(tt.yaml))
			assertContainsAll(t, err, tt.want...)
			if code := core.MapError(err).Code; code != "OBS003" {
				t.Errorf("code = %s, want OBS003", code)
			}
		})
	}
}

func TestMappingObserver(t *testing.T) {
	m := mustParseMapping(t, directoryMapping)
	obs, err := m.Observer(rawOrgs(), directoryFull())
	if err != nil {
		t.Fatalf("Observer: %v", err)
	}

	out, err := convert(t, rawOrgs(), directoryFull(), obs, rawCSV)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	want := "Identifier,Name,Address,Email,Countries,Kind\n" +
		"1,ACME,\"1 High St, Leeds\",info@acme.coop,United Kingdom;France,co-op\n" +
		"2,BETA,York,unknown,,co-op\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestMappingObserverStrict(t *testing.T) {
	m := mustParseMapping(t, strings.Replace(directoryMapping, "default: unknown", "strict: true", 1))
	obs, err := m.Observer(rawOrgs(), directoryFull())
	if err != nil {
		t.Fatalf("Observer: %v", err)
	}

	_, err = convert(t, rawOrgs(), directoryFull(), obs, rawCSV)
	assertContainsAll(t, err, `field "email"`)

	var ce *core.ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *core.ConversionError", err)
	}
	if ce.Row != 2 {
		t.Errorf("Row = %d, want 2", ce.Row)
	}
}

func TestMappingObserverDoesNotFit(t *testing.T) {
	m := mustParseMapping(t, directoryMapping)

	_, err := m.Observer(rawOrgs(), directory())
	assertContainsAll(t, err,
		`written for destination schema "directory_full"`,
		`field "address" is not in schema "directory"`)

	m.To = ""
	m.Fields["name"] = FieldRule{Source: StringOrArray{"title"}}
	delete(m.Fields, "kind")
	_, err = m.Observer(rawOrgs(), directoryFull())
	assertContainsAll(t, err,
		`source "title" is not in schema "raw_orgs"`,
		`no rule for field "kind"`)
	if code := core.MapError(err).Code; code != "OBS003" {
		t.Errorf("code = %s, want OBS003", code)
	}
}

func TestLoadMappingNamesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orgs.yaml")
	if err := os.WriteFile(path, []byte("fields:\n  id: {source: id}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if m.Name != "orgs" {
		t.Errorf("Name = %q, want the file's base name", m.Name)
	}

	if _, err := LoadMapping(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want os.ErrNotExist", err)
	}
}

func TestMappingSaveRoundTrip(t *testing.T) {
	m := mustParseMapping(t, directoryMapping)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	back, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if !reflect.DeepEqual(back, m) {
		t.Errorf("round trip = %+v, want %+v", back, m)
	}
}

func TestRegisterMappingDir(t *testing.T) {
	dir := t.TempDir()
	mapping := "name: test-dir-mapping\nfields:\n  id: {source: id}\n  name: {source: name}\n"
	writeFiles := map[string]string{"a.yml": mapping, "notes.txt": "ignored"}
	for name, data := range writeFiles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := RegisterMappingDir(dir)
	if err != nil {
		t.Fatalf("RegisterMappingDir: %v", err)
	}
	if !slices.Equal(names, []string{"test-dir-mapping"}) {
		t.Errorf("names = %q", names)
	}

	obs, err := core.NewObserver("test-dir-mapping", rawOrgs(), directory())
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	out, err := convert(t, rawOrgs(), directory(), obs, rawCSV)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if want := "Identifier,Name\n1,Acme\n2,Beta\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	_, err = RegisterMappingDir(dir)
	assertContainsAll(t, err, "already registered")
}
