// Package scaffold generates the Go source of an observer skeleton for a
// pair of schemas: every source field is read into a local variable and
// every destination field is emitted, so only the mapping itself is left
// to write.
package scaffold

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"strings"
	"text/template"
	"unicode"

	"github.com/JonMunkholm/seconvert/internal/normalize"
	"github.com/JonMunkholm/seconvert/internal/schema"
)

// DefaultModulePath is the import path prefix of the core and schema
// packages in generated code.
const DefaultModulePath = "github.com/JonMunkholm/seconvert"

// Config holds the options for a generated observer.
type Config struct {
	// Package is the package clause of the generated file.
	Package string
	// TypeName is the observer type. Defaults to the camel-cased schema ids.
	TypeName string
	// Key registers the observer under this name in an init func when set.
	Key string
	// ModulePath prefixes the internal/core and internal/schema imports.
	ModulePath string
}

// File is a generated Go source file.
type File struct {
	Filename string
	Content  []byte
}

type fieldData struct {
	ID     string
	Header string
	Var    string
	Used   bool
}

type outField struct {
	ID     string
	Header string
	Expr   string
}

type templateData struct {
	Package    string
	TypeName   string
	Key        string
	ModulePath string
	From, To   string
	In         []fieldData
	Out        []outField
}

var observerTemplate = template.Must(template.New("observer").Parse(`// Code generated by seconvert scaffold. Edit to fill in the mapping.

package {{.Package}}

import (
	"{{.ModulePath}}/internal/core"
	"{{.ModulePath}}/internal/schema"
)
{{if .Key}}
func init() {
	core.Register(core.ObserverDefinition{
		Key:         {{printf "%q" .Key}},
		Description: {{printf "%q" (printf "Converts %s rows into %s rows" .From .To)}},
		New: func(from, to *schema.Schema) (core.Observer, error) {
			return &{{.TypeName}}{}, nil
		},
	})
}
{{end}}
// {{.TypeName}} converts {{.From}} rows into {{.To}} rows.
type {{.TypeName}} struct {
	core.BaseObserver
}

func (o *{{.TypeName}}) OnRow(rec schema.Record, emit core.EmitFunc) error {
{{- range .In}}
	{{.Var}} := rec[{{printf "%q" .ID}}] // {{.Header}}
{{- end}}
{{- range .In}}{{if not .Used}}
	_ = {{.Var}}
{{- end}}{{end}}

	return emit(schema.Record{
{{- range .Out}}
		{{printf "%q" .ID}}: {{.Expr}}, // {{.Header}}
{{- end}}
	})
}
`))

// Generate returns the formatted source of an observer converting from
// into to. Destination fields whose id is also a source field are copied
// across; the rest are emitted as nil.
func Generate(from, to *schema.Schema, cfg Config) (*File, error) {
	if cfg.Package == "" {
		cfg.Package = "observers"
	}
	if cfg.ModulePath == "" {
		cfg.ModulePath = DefaultModulePath
	}
	if cfg.TypeName == "" {
		cfg.TypeName = exported(from.ID()) + "To" + exported(to.ID())
	}
	if !token.IsIdentifier(cfg.Package) {
		return nil, fmt.Errorf("invalid package name %q", cfg.Package)
	}
	if !token.IsIdentifier(cfg.TypeName) {
		return nil, fmt.Errorf("invalid type name %q", cfg.TypeName)
	}

	data := &templateData{
		Package:    cfg.Package,
		TypeName:   cfg.TypeName,
		Key:        cfg.Key,
		ModulePath: cfg.ModulePath,
		From:       from.ID(),
		To:         to.ID(),
	}

	taken := map[string]bool{"o": true, "rec": true, "emit": true, "core": true, "schema": true}
	vars := make(map[string]int)
	for _, f := range from.Fields() {
		v := localName(f.ID, taken)
		taken[v] = true
		vars[f.ID] = len(data.In)
		data.In = append(data.In, fieldData{ID: f.ID, Header: oneLine(f.Header), Var: v})
	}
	for _, f := range to.Fields() {
		expr := "nil"
		if i, ok := vars[f.ID]; ok {
			expr = data.In[i].Var
			data.In[i].Used = true
		}
		data.Out = append(data.Out, outField{ID: f.ID, Header: oneLine(f.Header), Expr: expr})
	}

	var buf bytes.Buffer
	if err := observerTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}

	filename := normalize.Identifier(from.ID()+"_to_"+to.ID()) + ".go"
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return &File{Filename: filename, Content: buf.Bytes()}, fmt.Errorf("formatting code: %w", err)
	}
	return &File{Filename: filename, Content: formatted}, nil
}

// localName turns a field id into an unexported Go identifier not in taken.
func localName(id string, taken map[string]bool) string {
	name := camel(id)
	if name == "" {
		name = "field"
	}
	if r := []rune(name)[0]; unicode.IsDigit(r) {
		name = "f" + name
	}
	if token.IsKeyword(name) || taken[name] {
		name += "Val"
	}
	base := name
	for i := 2; taken[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	return name
}

func camel(id string) string {
	parts := strings.Split(normalize.Identifier(id), "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	return b.String()
}

func exported(id string) string {
	s := camel(id)
	if s == "" {
		return "Schema"
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if unicode.IsDigit(rune(s[0])) {
		s = "S" + s
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
