// Package print provides a sink atom runner that renders a value to stdout.
package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/moleculego/internal/hclconv"
	"github.com/vk/moleculego/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print runner.
type Input struct {
	Value cty.Value `hcl:"value"`
}

// OnFetchPrint is the handler for the print runner. It resolves to true so
// later stages can depend on the print having happened.
func OnFetchPrint(ctx context.Context, input *Input) (cty.Value, error) {
	render(input.Value, "  ")
	return cty.True, nil
}

func render(v cty.Value, indent string) {
	if v.IsNull() {
		fmt.Printf("%s(null)\n", indent)
		return
	}
	if v.Type().IsObjectType() || v.Type().IsMapType() {
		plain, ok := hclconv.FromCty(v).(map[string]any)
		if !ok {
			fmt.Printf("%s%v\n", indent, hclconv.FromCty(v))
			return
		}
		keys := make([]string, 0, len(plain))
		for k := range plain {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s%s = %v\n", indent, k, plain[k])
		}
		return
	}
	fmt.Printf("%s%v\n", indent, hclconv.FromCty(v))
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAtom("print", &registry.RegisteredAtom{
		NewInput: func() any { return new(Input) },
		Fn:       OnFetchPrint,
	})
}
