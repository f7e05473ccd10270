package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/seconvert/internal/schema"
)

// ObserverFactory builds an observer for one pair of schemas.
type ObserverFactory func(from, to *schema.Schema) (Observer, error)

// ObserverDefinition is a named observer available to the CLI and HTTP
// server.
type ObserverDefinition struct {
	Key         string          `json:"key"`
	Description string          `json:"description"`
	New         ObserverFactory `json:"-"`
}

var (
	registry   = make(map[string]ObserverDefinition)
	registryMu sync.RWMutex
)

// Register adds an observer definition to the registry.
// Panics if an observer with the same key is already registered.
func Register(def ObserverDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Key == "" || def.New == nil {
		panic("observer definition needs a key and a factory")
	}
	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("observer already registered: %s", def.Key))
	}
	registry[def.Key] = def
}

// Get returns an observer definition by key.
func Get(key string) (ObserverDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered observer definitions sorted by key.
func All() []ObserverDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ObserverDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result
}

// ObserverCount returns the number of registered observers.
func ObserverCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered observers.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ObserverDefinition)
}

// NewObserver builds the observer registered under key.
func NewObserver(key string, from, to *schema.Schema) (Observer, error) {
	def, ok := Get(key)
	if !ok {
		return nil, fmt.Errorf("unknown observer %q", key)
	}
	return def.New(from, to)
}
