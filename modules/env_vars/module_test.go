package env_vars

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/moleculego/internal/registry"
	"github.com/vk/moleculego/internal/testutil"
)

func TestOnFetchEnvVars(t *testing.T) {
	t.Setenv("MOLECULEGO_TEST_ALPHA", "one")
	t.Setenv("MOLECULEGO_TEST_BETA", "two")
	t.Setenv("OTHER_TEST_VAR", "three")

	t.Run("snapshots the whole environment", func(t *testing.T) {
		val, err := OnFetchEnvVars(context.Background(), &Input{})
		require.NoError(t, err)
		all := val.GetAttr("all")
		assert.Equal(t, "one", all.GetAttr("MOLECULEGO_TEST_ALPHA").AsString())
		assert.Equal(t, "three", all.GetAttr("OTHER_TEST_VAR").AsString())
	})

	t.Run("prefix filters the snapshot", func(t *testing.T) {
		val, err := OnFetchEnvVars(context.Background(), &Input{Prefix: "MOLECULEGO_TEST_"})
		require.NoError(t, err)
		all := val.GetAttr("all")
		assert.Equal(t, "one", all.GetAttr("MOLECULEGO_TEST_ALPHA").AsString())
		assert.Equal(t, "two", all.GetAttr("MOLECULEGO_TEST_BETA").AsString())
		assert.False(t, all.Type().HasAttribute("OTHER_TEST_VAR"))
	})

	t.Run("no matches yields an empty object", func(t *testing.T) {
		val, err := OnFetchEnvVars(context.Background(), &Input{Prefix: "MOLECULEGO_NO_SUCH_PREFIX_"})
		require.NoError(t, err)
		assert.True(t, val.GetAttr("all").RawEquals(cty.EmptyObjectVal))
	})
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)

	_, ok := r.Lookup("env_vars")
	require.True(t, ok)
	require.NoError(t, r.Validate(testutil.Context(t)))
}
