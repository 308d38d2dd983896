package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/moleculego/internal/config"
	"github.com/vk/moleculego/internal/future"
	"github.com/vk/moleculego/internal/hcl"
	"github.com/vk/moleculego/internal/molecule"
	"github.com/vk/moleculego/internal/registry"
	"github.com/vk/moleculego/internal/testutil"
)

type echoInput struct {
	URL    string    `hcl:"url"`
	Detail cty.Value `hcl:"detail,optional"`
}

// loadModel parses an HCL molecule source into the config model.
func loadModel(t *testing.T, src string) *config.Model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))
	model, err := hcl.Load(testutil.Context(t), path)
	require.NoError(t, err)
	return model
}

func echoRegistry(t *testing.T, fn any) *registry.Registry {
	t.Helper()
	r := registry.New()
	r.RegisterAtom("echo", &registry.RegisteredAtom{
		NewInput: func() any { return new(echoInput) },
		Fn:       fn,
	})
	require.NoError(t, r.Validate(testutil.Context(t)))
	return r
}

func await(t *testing.T, ctx context.Context, f *future.Future) (any, error) {
	t.Helper()
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return f.Wait(waitCtx)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("unknown runner is a config error with its range", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "user" { runner = "nope" }
			}
		`)
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			return cty.True, nil
		})

		_, err := Build(testutil.Context(t), model, reg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown runner "nope"`)
		assert.Contains(t, err.Error(), "main.hcl")
		assert.Contains(t, err.Error(), "echo")
	})

	t.Run("duplicate atom names across stages fail validation", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "user" {
					runner = "echo"
					arguments { url = "a" }
				}
			}
			stage {
				atom "user" {
					runner = "echo"
					arguments { url = "b" }
				}
			}
		`)
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			return cty.True, nil
		})

		_, err := Build(testutil.Context(t), model, reg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user")
	})

	t.Run("stages and atoms map one to one", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "first" {
					runner = "echo"
					arguments { url = "a" }
				}
			}
			stage {
				atom "second" {
					runner = "echo"
					arguments { url = "b" }
				}
			}
		`)
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			return cty.True, nil
		})

		mol, err := Build(testutil.Context(t), model, reg)
		require.NoError(t, err)
		require.Len(t, mol, 2)
		assert.Equal(t, []string{"first", "second"}, mol.Names())
	})
}

func TestBuiltAtom(t *testing.T) {
	t.Parallel()

	t.Run("invokes the handler with decoded arguments", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "user" {
					runner = "echo"
					arguments {
						url = "${props.base_url}/users/${props.id}"
					}
				}
			}
		`)
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			return cty.StringVal(input.URL), nil
		})
		mol, err := Build(testutil.Context(t), model, reg)
		require.NoError(t, err)

		ctx := testutil.Context(t)
		props := molecule.NewProps(map[string]any{
			"base_url": "https://api.example.com",
			"id":       "42",
		})
		fut := mol[0]["user"](ctx, props)
		require.NotNil(t, fut)

		val, err := await(t, ctx, fut)
		require.NoError(t, err)
		assert.True(t, cty.StringVal("https://api.example.com/users/42").RawEquals(val.(cty.Value)))
	})

	t.Run("absent while a referenced props key is missing", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "dependent" {
					runner = "echo"
					arguments {
						url = props.user["profile_url"]
					}
				}
			}
		`)
		called := false
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			called = true
			return cty.True, nil
		})
		mol, err := Build(testutil.Context(t), model, reg)
		require.NoError(t, err)

		ctx := testutil.Context(t)
		fut := mol[0]["dependent"](ctx, molecule.NewProps(nil))
		assert.Nil(t, fut)
		assert.False(t, called)

		// Once the key appears the atom runs.
		props := molecule.NewProps(map[string]any{
			"user": map[string]any{"profile_url": "https://example.com/p/1"},
		})
		fut = mol[0]["dependent"](ctx, props)
		require.NotNil(t, fut)
		_, err = await(t, ctx, fut)
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("decode failure settles as a failed operation", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "user" {
					runner = "echo"
					arguments {
						url    = "a"
						bogus  = "typo"
					}
				}
			}
		`)
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			return cty.True, nil
		})
		mol, err := Build(testutil.Context(t), model, reg)
		require.NoError(t, err)

		ctx := testutil.Context(t)
		fut := mol[0]["user"](ctx, molecule.NewProps(nil))
		require.NotNil(t, fut)
		_, err = await(t, ctx, fut)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `atom "user"`)
		assert.Contains(t, err.Error(), `unsupported argument "bogus"`)
	})

	t.Run("handler error fails the operation verbatim", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "user" {
					runner = "echo"
					arguments { url = "a" }
				}
			}
		`)
		boom := errors.New("upstream unavailable")
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			return cty.NilVal, boom
		})
		mol, err := Build(testutil.Context(t), model, reg)
		require.NoError(t, err)

		ctx := testutil.Context(t)
		fut := mol[0]["user"](ctx, molecule.NewProps(nil))
		require.NotNil(t, fut)
		_, err = await(t, ctx, fut)
		assert.Same(t, boom, err)
	})

	t.Run("null handler result reports absent", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "user" {
					runner = "echo"
					arguments { url = "a" }
				}
			}
		`)
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			return cty.NullVal(cty.DynamicPseudoType), nil
		})
		mol, err := Build(testutil.Context(t), model, reg)
		require.NoError(t, err)

		ctx := testutil.Context(t)
		fut := mol[0]["user"](ctx, molecule.NewProps(nil))
		require.NotNil(t, fut)
		val, err := await(t, ctx, fut)
		require.NoError(t, err)
		assert.Nil(t, val)
	})

	t.Run("complex props values survive the cty round trip", func(t *testing.T) {
		t.Parallel()
		model := loadModel(t, `
			stage {
				atom "user" {
					runner = "echo"
					arguments {
						url    = "a"
						detail = props.payload
					}
				}
			}
		`)
		var got cty.Value
		reg := echoRegistry(t, func(ctx context.Context, input *echoInput) (cty.Value, error) {
			got = input.Detail
			return cty.True, nil
		})
		mol, err := Build(testutil.Context(t), model, reg)
		require.NoError(t, err)

		ctx := testutil.Context(t)
		props := molecule.NewProps(map[string]any{
			"payload": cty.ObjectVal(map[string]cty.Value{
				"id":   cty.NumberIntVal(99),
				"tags": cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}),
			}),
		})
		fut := mol[0]["user"](ctx, props)
		require.NotNil(t, fut)
		_, err = await(t, ctx, fut)
		require.NoError(t, err)
		require.True(t, got.Type().IsObjectType())
		assert.True(t, cty.NumberIntVal(99).RawEquals(got.GetAttr("id")))
	})
}
