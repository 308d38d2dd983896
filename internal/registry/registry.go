// Package registry is the glue between molecule files and compiled Go code.
// It maps the runner names used in `atom` blocks to the handler functions
// that perform the actual fetches. The registry is populated at startup and
// validated once, so a mismatch between configuration and code fails fast
// instead of surfacing mid-pass.
package registry

import (
	"fmt"
	"sort"
)

// RegisteredAtom holds the compiled Go parts of one atom runner.
type RegisteredAtom struct {
	// NewInput returns a fresh pointer to the handler's input struct.
	// Handlers without arguments return a pointer to an empty struct.
	NewInput func() any
	// Fn is the handler: func(context.Context, *Input) (cty.Value, error).
	// A null or nil result value reports absent.
	Fn any
}

// Module is the interface all built-in modules implement to register their
// runners.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered atom runners for one application instance.
type Registry struct {
	atoms map[string]*RegisteredAtom
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{atoms: make(map[string]*RegisteredAtom)}
}

// RegisterAtom registers a runner under name. Registering the same name
// twice is a programmer error and panics.
func (r *Registry) RegisterAtom(name string, handler *RegisteredAtom) {
	if _, exists := r.atoms[name]; exists {
		panic(fmt.Sprintf("atom runner %q already registered", name))
	}
	r.atoms[name] = handler
}

// Lookup returns the runner registered under name.
func (r *Registry) Lookup(name string) (*RegisteredAtom, bool) {
	h, ok := r.atoms[name]
	return h, ok
}

// Names returns every registered runner name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.atoms))
	for name := range r.atoms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
