// Package registry holds the shared provider contract and the ordered set of
// provider definitions exposed to the rest of the application.
package registry

import (
	"fmt"
	"strings"
)

// Registry is the central registry for all email marketing providers.
type Registry struct {
	definitions map[string]Definition
	order       []string // Display order
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]Definition),
		order:       make([]string, 0),
	}
}

// Register adds a provider definition to the registry.
func (r *Registry) Register(def Definition) error {
	kind := strings.TrimSpace(def.Kind())
	if kind == "" {
		return fmt.Errorf("provider kind cannot be empty")
	}
	if _, exists := r.definitions[kind]; exists {
		return fmt.Errorf("provider kind %q already registered", kind)
	}
	r.definitions[kind] = def
	r.order = append(r.order, kind)
	return nil
}

// Get retrieves a provider definition by kind. Kind matching is exact.
func (r *Registry) Get(kind string) (Definition, bool) {
	def, ok := r.definitions[kind]
	return def, ok
}

// All returns all registered provider definitions in order.
func (r *Registry) All() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, kind := range r.order {
		defs = append(defs, r.definitions[kind])
	}
	return defs
}
