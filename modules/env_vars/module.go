// Package env_vars provides an atom runner that snapshots the process
// environment so later stages can read deployment-specific values.
package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/moleculego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the env_vars runner.
type Input struct {
	// Prefix limits the snapshot to variables with this name prefix.
	Prefix string `hcl:"prefix,optional"`
}

// OnFetchEnvVars is the handler for the env_vars runner.
func OnFetchEnvVars(ctx context.Context, input *Input) (cty.Value, error) {
	vars := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		name, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if input.Prefix != "" && !strings.HasPrefix(name, input.Prefix) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}

	if len(vars) == 0 {
		return cty.ObjectVal(map[string]cty.Value{"all": cty.EmptyObjectVal}), nil
	}
	return cty.ObjectVal(map[string]cty.Value{"all": cty.ObjectVal(vars)}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAtom("env_vars", &registry.RegisteredAtom{
		NewInput: func() any { return new(Input) },
		Fn:       OnFetchEnvVars,
	})
}
