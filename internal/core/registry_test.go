package core

import (
	"testing"

	"github.com/JonMunkholm/seconvert/internal/schema"
)

func withCleanRegistry(t *testing.T) {
	t.Helper()
	registryMu.Lock()
	saved := registry
	registry = make(map[string]ObserverDefinition)
	registryMu.Unlock()

	t.Cleanup(func() {
		registryMu.Lock()
		registry = saved
		registryMu.Unlock()
	})
}

func passThrough(from, to *schema.Schema) (Observer, error) {
	return Func(func(rec schema.Record) ([]schema.Record, error) {
		return []schema.Record{rec}, nil
	}), nil
}

func TestRegistry(t *testing.T) {
	withCleanRegistry(t)

	Register(ObserverDefinition{Key: "zeta", Description: "last", New: passThrough})
	Register(ObserverDefinition{Key: "alpha", Description: "first", New: passThrough})

	if got := ObserverCount(); got != 2 {
		t.Errorf("ObserverCount = %d, want 2", got)
	}

	all := All()
	if len(all) != 2 || all[0].Key != "alpha" || all[1].Key != "zeta" {
		t.Errorf("All = %+v, want sorted by key", all)
	}

	if _, ok := Get("alpha"); !ok {
		t.Error("Get(alpha) not found")
	}
	if _, ok := Get("missing"); ok {
		t.Error("Get(missing) found")
	}

	obs, err := NewObserver("alpha", orgsIn(), orgsIn())
	if err != nil || obs == nil {
		t.Errorf("NewObserver = %v, %v", obs, err)
	}
	if _, err := NewObserver("missing", orgsIn(), orgsIn()); err == nil {
		t.Error("expected unknown observer error")
	}

	Clear()
	if ObserverCount() != 0 {
		t.Error("Clear did not empty the registry")
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	withCleanRegistry(t)
	Register(ObserverDefinition{Key: "dup", New: passThrough})

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register(ObserverDefinition{Key: "dup", New: passThrough})
}
