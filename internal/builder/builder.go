// Package builder binds a loaded config model and a populated registry into
// an executable molecule. Each configured atom becomes a closure that
// evaluates its argument expressions against the current props, decodes
// them into the handler's input struct, and starts the handler on its own
// operation.
package builder

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/moleculego/internal/config"
	"github.com/vk/moleculego/internal/ctxlog"
	"github.com/vk/moleculego/internal/future"
	"github.com/vk/moleculego/internal/hclconv"
	"github.com/vk/moleculego/internal/molecule"
	"github.com/vk/moleculego/internal/registry"
)

// Build translates the model's stages into a molecule, resolving every
// runner reference against the registry. An unknown runner is a config
// error reported with its source range.
func Build(ctx context.Context, model *config.Model, reg *registry.Registry) (molecule.Molecule, error) {
	logger := ctxlog.FromContext(ctx)

	var mol molecule.Molecule
	for _, stageCfg := range model.Stages {
		stage := molecule.Stage{}
		for _, atomCfg := range stageCfg.Atoms {
			handler, ok := reg.Lookup(atomCfg.Runner)
			if !ok {
				return nil, fmt.Errorf("atom %q at %s references unknown runner %q (registered: %v)",
					atomCfg.Name, atomCfg.DefRange, atomCfg.Runner, reg.Names())
			}
			stage[atomCfg.Name] = newAtom(atomCfg, handler)
		}
		mol = append(mol, stage)
	}

	if err := mol.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Molecule built.", "stages", len(mol), "atoms", len(mol.Names()))
	return mol, nil
}

// newAtom wraps a registered handler into an engine atom. The returned atom
// reports absent (nil) when any props reference in its arguments has no
// resolved value yet, so a dependent fetch simply waits for a later pass
// segment instead of failing.
func newAtom(cfg *config.Atom, handler *registry.RegisteredAtom) molecule.Atom {
	required := requiredProps(cfg.Arguments)
	fn := reflect.ValueOf(handler.Fn)

	return func(ctx context.Context, props molecule.Props) *future.Future {
		for _, key := range required {
			if !props.Has(key) {
				return nil
			}
		}

		propsObj, err := propsObject(props)
		if err != nil {
			return future.Failed(fmt.Errorf("atom %q: %w", cfg.Name, err))
		}
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{"props": propsObj},
		}

		input := handler.NewInput()
		if err := hclconv.DecodeExpressions(input, cfg.Arguments, evalCtx); err != nil {
			return future.Failed(fmt.Errorf("atom %q: %w", cfg.Name, err))
		}

		return future.Go(func() (any, error) {
			results := fn.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(input)})
			if e := results[1].Interface(); e != nil {
				return nil, e.(error)
			}
			val := results[0].Interface().(cty.Value)
			if val.IsNull() {
				// The handler reported absent rather than a value.
				return nil, nil
			}
			return val, nil
		})
	}
}

// requiredProps extracts the props keys an atom's arguments reference. Only
// the root attribute after `props` matters; deeper traversal failures are
// real errors, not missing inputs.
func requiredProps(args map[string]hcl.Expression) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, expr := range args {
		for _, traversal := range expr.Variables() {
			if traversal.RootName() != "props" || len(traversal) < 2 {
				continue
			}
			key, ok := traversalKey(traversal[1])
			if !ok || seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func traversalKey(step hcl.Traverser) (string, bool) {
	switch s := step.(type) {
	case hcl.TraverseAttr:
		return s.Name, true
	case hcl.TraverseIndex:
		if s.Key.Type() == cty.String {
			return s.Key.AsString(), true
		}
	}
	return "", false
}

// propsObject converts the best-known props into the cty object that
// argument expressions evaluate against.
func propsObject(props molecule.Props) (cty.Value, error) {
	attrs := make(map[string]cty.Value)
	for _, name := range props.Names() {
		v, _ := props.Value(name)
		cv, err := hclconv.ToCty(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("props value %q: %w", name, err)
		}
		attrs[name] = cv
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}
