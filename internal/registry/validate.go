package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/moleculego/internal/ctxlog"
)

var (
	contextType  = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	ctyValueType = reflect.TypeOf(cty.Value{})
)

// Validate checks every registered handler for the required shape:
// func(context.Context, *Input) (cty.Value, error), with *Input matching
// what NewInput produces. A mismatch is a programmer error caught at
// startup.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	for _, name := range r.Names() {
		h, _ := r.Lookup(name)
		if err := validateHandler(h); err != nil {
			errs = append(errs, fmt.Sprintf("runner %q: %v", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	logger.Debug("Registry validation passed.", "runners", len(r.atoms))
	return nil
}

func validateHandler(h *RegisteredAtom) error {
	if h.NewInput == nil {
		return fmt.Errorf("NewInput is nil")
	}
	if h.Fn == nil {
		return fmt.Errorf("Fn is nil")
	}

	fn := reflect.TypeOf(h.Fn)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("Fn is %s, want a function", fn.Kind())
	}
	if fn.NumIn() != 2 || fn.NumOut() != 2 {
		return fmt.Errorf("Fn must be func(context.Context, *Input) (cty.Value, error)")
	}
	if fn.In(0) != contextType {
		return fmt.Errorf("Fn's first parameter must be context.Context, got %s", fn.In(0))
	}
	inputType := reflect.TypeOf(h.NewInput())
	if fn.In(1) != inputType {
		return fmt.Errorf("Fn's input parameter is %s but NewInput produces %s", fn.In(1), inputType)
	}
	if fn.Out(0) != ctyValueType {
		return fmt.Errorf("Fn's first result must be cty.Value, got %s", fn.Out(0))
	}
	if fn.Out(1) != errorType {
		return fmt.Errorf("Fn's second result must be error, got %s", fn.Out(1))
	}
	return nil
}
