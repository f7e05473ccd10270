package scaffold

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/JonMunkholm/seconvert/internal/schema"
)

func rawOrgs() *schema.Schema {
	return schema.MustNew(schema.Definition{
		ID: "raw_orgs",
		Fields: []schema.Field{
			schema.NewField("id", "Org ID"),
			schema.NewField("name", "Organisation"),
			schema.NewField("type", "Type"),
			schema.NewField("post-code", "Post\ncode"),
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
			schema.NewField("website", "Website"),
		},
	})
}

func checkSource(t *testing.T, f *File, contains, lacks []string) {
	t.Helper()
	src := string(f.Content)
	for _, want := range contains {
		if !strings.Contains(src, want) {
			t.Errorf("generated source lacks %q", want)
		}
	}
	for _, bad := range lacks {
		if strings.Contains(src, bad) {
			t.Errorf("generated source contains %q", bad)
		}
	}
	if _, err := parser.ParseFile(token.NewFileSet(), f.Filename, f.Content, parser.AllErrors); err != nil {
		t.Errorf("generated source does not parse: %v\n%s", err, src)
	}
}

func TestGenerate(t *testing.T) {
	f, err := Generate(rawOrgs(), directory(), Config{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.Filename != "raw_orgs_to_directory.go" {
		t.Errorf("Filename = %q", f.Filename)
	}

	checkSource(t, f, []string{
		"package observers",
		`"github.com/JonMunkholm/seconvert/internal/core"`,
		"type RawOrgsToDirectory struct",
		`id := rec["id"]`,
		`typeVal := rec["type"]`,
		`postCode := rec["post-code"] // Post code`,
		"_ = typeVal",
		"_ = postCode",
		`"website": nil,`,
	}, []string{"_ = id", "func init()"})
}

func TestGenerateWithRegistration(t *testing.T) {
	f, err := Generate(rawOrgs(), directory(), Config{
		Package:    "custom",
		TypeName:   "OrgsObserver",
		Key:        "orgs",
		ModulePath: "example.com/conv",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	checkSource(t, f, []string{
		"package custom",
		`"example.com/conv/internal/schema"`,
		"func init()",
		`"orgs"`,
		`"Converts raw_orgs rows into directory rows"`,
		"return &OrgsObserver{}, nil",
	}, nil)
}

func TestGenerateRejectsBadNames(t *testing.T) {
	tests := []struct {
		cfg  Config
		want string
	}{
		{Config{Package: "my-pkg"}, "invalid package name"},
		{Config{TypeName: "1Type"}, "invalid type name"},
	}
	for _, tt := range tests {
		_, err := Generate(rawOrgs(), directory(), tt.cfg)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Generate(%+v) err = %v, want %q", tt.cfg, err, tt.want)
		}
	}
}

func TestLocalName(t *testing.T) {
	taken := map[string]bool{"rec": true}
	tests := []struct {
		id   string
		want string
	}{
		{"org_id", "orgId"},
		{"Post Code", "postCode"},
		{"func", "funcVal"},
		{"rec", "recVal"},
		{"2nd", "f2nd"},
		{"!!", "field"},
	}
	for _, tt := range tests {
		if got := localName(tt.id, taken); got != tt.want {
			t.Errorf("localName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}

	taken["orgId"] = true
	taken["orgIdVal"] = true
	if got := localName("org_id", taken); got != "orgIdVal2" {
		t.Errorf("localName with orgId taken = %q, want orgIdVal2", got)
	}
}

func TestExported(t *testing.T) {
	tests := map[string]string{
		"raw_orgs":  "RawOrgs",
		"2024-data": "S2024Data",
		"--":        "Schema",
	}
	for in, want := range tests {
		if got := exported(in); got != want {
			t.Errorf("exported(%q) = %q, want %q", in, got, want)
		}
	}
}
