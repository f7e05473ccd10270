// Package observers holds the observers available by name to the CLI and
// HTTP server: the built-in identity observer and observers loaded from
// YAML mapping files.
package observers

import (
	"github.com/JonMunkholm/seconvert/internal/core"
	"github.com/JonMunkholm/seconvert/internal/schema"
)

// IdentityKey is the registry key of the identity observer.
const IdentityKey = "identity"

func init() {
	core.Register(core.ObserverDefinition{
		Key:         IdentityKey,
		Description: "Copies every destination field from the source field with the same id",
		New:         NewIdentity,
	})
}

// Identity copies each destination field from the source field with the
// same id. It drops the source fields the destination does not define, so
// it converts a schema into any schema it is a superset of.
type Identity struct {
	core.BaseObserver
	ids []string
}

// NewIdentity returns an Identity observer, failing unless from is a
// superset of to.
func NewIdentity(from, to *schema.Schema) (core.Observer, error) {
	if err := from.AssertSupersetOf(to); err != nil {
		return nil, err
	}
	return &Identity{ids: to.FieldIDs()}, nil
}

func (o *Identity) OnRow(rec schema.Record, emit core.EmitFunc) error {
	out := make(schema.Record, len(o.ids))
	for _, id := range o.ids {
		out[id] = rec[id]
	}
	return emit(out)
}
