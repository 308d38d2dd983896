package hclconv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

// DecodeExpressions evaluates argument expressions against evalCtx and fills
// the fields of target, a pointer to a struct with `hcl` field tags. Fields
// tagged `optional` may be missing from exprs; any expression with no
// matching field is an error, so typos surface instead of being ignored.
func DecodeExpressions(target any, exprs map[string]hcl.Expression, evalCtx *hcl.EvalContext) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode target must be a pointer to struct, got %T", target)
	}
	rv = rv.Elem()
	rt := rv.Type()

	known := make(map[string]bool)
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		name, optional, ok := parseTag(field.Tag.Get("hcl"))
		if !ok {
			continue
		}
		known[name] = true

		expr, present := exprs[name]
		if !present {
			if optional {
				continue
			}
			return fmt.Errorf("missing required argument %q", name)
		}

		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return fmt.Errorf("argument %q: %s", name, diags)
		}
		if err := assign(rv.Field(i), val); err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
	}

	for name := range exprs {
		if !known[name] {
			return fmt.Errorf("unsupported argument %q", name)
		}
	}
	return nil
}

func parseTag(tag string) (name string, optional bool, ok bool) {
	if tag == "" || tag == "-" {
		return "", false, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, p := range parts[1:] {
		if p == "optional" {
			optional = true
		}
	}
	return name, optional, true
}

func assign(field reflect.Value, val cty.Value) error {
	if field.Type() == ctyValueType {
		field.Set(reflect.ValueOf(val))
		return nil
	}

	want, err := gocty.ImpliedType(field.Interface())
	if err != nil {
		return fmt.Errorf("field type %s not decodable: %w", field.Type(), err)
	}
	conv, err := convert.Convert(val, want)
	if err != nil {
		return err
	}
	return gocty.FromCtyValue(conv, field.Addr().Interface())
}
