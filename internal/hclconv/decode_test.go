package hclconv

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type decodeTarget struct {
	URL     string            `hcl:"url"`
	Method  string            `hcl:"method,optional"`
	Count   int               `hcl:"count,optional"`
	Headers map[string]string `hcl:"headers,optional"`
	Payload cty.Value         `hcl:"payload,optional"`
	ignored string
}

func expr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), "parse %q: %s", src, diags)
	return e
}

func TestDecodeExpressions(t *testing.T) {
	t.Parallel()

	t.Run("fills tagged fields from expressions", func(t *testing.T) {
		t.Parallel()
		target := &decodeTarget{}
		exprs := map[string]hcl.Expression{
			"url":     expr(t, `"https://example.com"`),
			"method":  expr(t, `"POST"`),
			"count":   expr(t, `3`),
			"headers": expr(t, `{ Accept = "application/json" }`),
		}

		err := DecodeExpressions(target, exprs, &hcl.EvalContext{})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", target.URL)
		assert.Equal(t, "POST", target.Method)
		assert.Equal(t, 3, target.Count)
		assert.Equal(t, map[string]string{"Accept": "application/json"}, target.Headers)
	})

	t.Run("cty.Value fields capture the raw value", func(t *testing.T) {
		t.Parallel()
		target := &decodeTarget{}
		exprs := map[string]hcl.Expression{
			"url":     expr(t, `"u"`),
			"payload": expr(t, `{ id = 9, nested = { ok = true } }`),
		}

		err := DecodeExpressions(target, exprs, &hcl.EvalContext{})
		require.NoError(t, err)
		require.True(t, target.Payload.Type().IsObjectType())
		assert.True(t, target.Payload.GetAttr("nested").GetAttr("ok").True())
	})

	t.Run("evaluates against the provided variables", func(t *testing.T) {
		t.Parallel()
		target := &decodeTarget{}
		evalCtx := &hcl.EvalContext{
			Variables: map[string]cty.Value{
				"props": cty.ObjectVal(map[string]cty.Value{
					"base_url": cty.StringVal("https://api.internal"),
				}),
			},
		}
		exprs := map[string]hcl.Expression{
			"url": expr(t, `"${props.base_url}/v1/users"`),
		}

		err := DecodeExpressions(target, exprs, evalCtx)
		require.NoError(t, err)
		assert.Equal(t, "https://api.internal/v1/users", target.URL)
	})

	t.Run("missing required argument fails", func(t *testing.T) {
		t.Parallel()
		err := DecodeExpressions(&decodeTarget{}, map[string]hcl.Expression{}, &hcl.EvalContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing required argument "url"`)
	})

	t.Run("unknown argument fails instead of being ignored", func(t *testing.T) {
		t.Parallel()
		exprs := map[string]hcl.Expression{
			"url": expr(t, `"u"`),
			"ulr": expr(t, `"typo"`),
		}
		err := DecodeExpressions(&decodeTarget{}, exprs, &hcl.EvalContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported argument "ulr"`)
	})

	t.Run("type mismatch surfaces the argument name", func(t *testing.T) {
		t.Parallel()
		exprs := map[string]hcl.Expression{
			"url":   expr(t, `"u"`),
			"count": expr(t, `{ not = "a number" }`),
		}
		err := DecodeExpressions(&decodeTarget{}, exprs, &hcl.EvalContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `argument "count"`)
	})

	t.Run("rejects non-pointer targets", func(t *testing.T) {
		t.Parallel()
		err := DecodeExpressions(decodeTarget{}, nil, &hcl.EvalContext{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pointer to struct")
	})
}
