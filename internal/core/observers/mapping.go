package observers

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/normalize"
	"github.com/JonMunkholm/seconvert/internal/schema"
)

// MappingObserver fills each destination field according to a Mapping.
type MappingObserver struct {
	core.BaseObserver
	name   string
	rules  []rule
	logger *slog.Logger
}

type rule struct {
	id      string
	sources []string
	value   *string
	fn      normalize.Func
	each    bool
	def     *string
	strict  bool
}

// Observer binds m to a pair of schemas. Every destination field needs a
// rule and every source named by a rule must be a field of from.
func (m *Mapping) Observer(from, to *schema.Schema) (*MappingObserver, error) {
	var errs []error
	if m.From != "" && m.From != from.ID() {
		errs = append(errs, fmt.Errorf("written for source schema %q, not %q", m.From, from.ID()))
	}
	if m.To != "" && m.To != to.ID() {
		errs = append(errs, fmt.Errorf("written for destination schema %q, not %q", m.To, to.ID()))
	}

	toIDs := to.FieldIDs()
	for _, id := range m.fieldIDs() {
		if !slices.Contains(toIDs, id) {
			errs = append(errs, fmt.Errorf("field %q is not in schema %q", id, to.ID()))
		}
	}

	rules := make([]rule, 0, len(toIDs))
	for _, id := range toIDs {
		fr, ok := m.Fields[id]
		if !ok {
			errs = append(errs, fmt.Errorf("no rule for field %q of schema %q", id, to.ID()))
			continue
		}
		for _, src := range fr.Source {
			if _, ok := from.Field(src); !ok {
				errs = append(errs, fmt.Errorf("field %q: source %q is not in schema %q", id, src, from.ID()))
			}
		}

		r := rule{id: id, sources: fr.Source, value: fr.Value, each: fr.Each, def: fr.Default, strict: fr.Strict}
		if len(fr.Normalize) > 0 {
			fns := make([]normalize.Func, 0, len(fr.Normalize))
			for _, name := range fr.Normalize {
				if fn, ok := normalize.Lookup(name); ok {
					fns = append(fns, fn)
				}
			}
			r.fn = normalize.Chain(fns...)
		}
		rules = append(rules, r)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("mapping file %q does not fit %s -> %s: %w", m.Name, from.ID(), to.ID(), errors.Join(errs...))
	}
	return &MappingObserver{
		name:   m.Name,
		rules:  rules,
		logger: slog.Default().With("mapping", m.Name),
	}, nil
}

func (o *MappingObserver) OnRow(rec schema.Record, emit core.EmitFunc) error {
	out := make(schema.Record, len(o.rules))
	for _, r := range o.rules {
		v, err := r.apply(rec, o.logger)
		if err != nil {
			return fmt.Errorf("mapping %q: field %q: %w", o.name, r.id, err)
		}
		out[r.id] = v
	}
	return emit(out)
}

func (r rule) apply(rec schema.Record, logger *slog.Logger) (any, error) {
	if r.value != nil {
		return *r.value, nil
	}

	var v any
	if len(r.sources) == 1 {
		v = rec[r.sources[0]]
	} else {
		parts := make([]string, len(r.sources))
		for i, src := range r.sources {
			parts[i] = text(rec[src])
		}
		v = normalize.Addr(parts...)
	}

	s := text(v)
	if s == "" {
		if r.def != nil {
			return *r.def, nil
		}
		return v, nil
	}
	if r.fn == nil {
		return v, nil
	}

	if r.each {
		var failed error
		joined, err := normalize.DefaultMultiValue.Map(s, normalize.DefaultMultiValue, func(item string) (string, bool) {
			nv, err := r.fn(item)
			if err != nil {
				if failed == nil {
					failed = err
				}
				logger.Debug("dropping value", "field", r.id, "value", item, "error", err)
				return "", false
			}
			return nv, true
		})
		if err != nil {
			return r.fallback(s, err, logger)
		}
		if failed != nil && r.strict {
			return nil, failed
		}
		return joined, nil
	}

	nv, err := r.fn(s)
	if err != nil {
		return r.fallback(s, err, logger)
	}
	return nv, nil
}

func (r rule) fallback(s string, err error, logger *slog.Logger) (any, error) {
	if r.strict {
		return nil, err
	}
	logger.Debug("using default", "field", r.id, "value", s, "error", err)
	if r.def != nil {
		return *r.def, nil
	}
	return nil, nil
}

func text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// RegisterMapping makes m available as an observer under its name.
func RegisterMapping(m *Mapping) error {
	if m.Name == "" {
		return errors.New("invalid mapping file: a registered mapping needs a name")
	}
	if _, exists := core.Get(m.Name); exists {
		return fmt.Errorf("invalid mapping file: observer %q is already registered", m.Name)
	}
	desc := m.Description
	if desc == "" {
		desc = fmt.Sprintf("Mapping %s", m.Name)
	}
	core.Register(core.ObserverDefinition{
		Key:         m.Name,
		Description: desc,
		New: func(from, to *schema.Schema) (core.Observer, error) {
			obs, err := m.Observer(from, to)
			if err != nil {
				return nil, err
			}
			return obs, nil
		},
	})
	return nil
}

// RegisterMappingDir loads and registers every .yaml and .yml mapping file
// in dir, returning the registered names.
func RegisterMappingDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		m, err := LoadMapping(filepath.Join(dir, e.Name()))
		if err != nil {
			return names, err
		}
		if err := RegisterMapping(m); err != nil {
			return names, err
		}
		names = append(names, m.Name)
	}
	return names, nil
}
