package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getgrove/grove/pkg/action"
	"github.com/getgrove/grove/pkg/derive"
	"github.com/getgrove/grove/pkg/store"
	"github.com/getgrove/grove/pkg/track"
)

func TestParseState(t *testing.T) {
	state, err := ParseState([]byte(`
title: inbox
todos:
  - text: first
    done: false
limits:
  max: 10
`))
	require.NoError(t, err)
	assert.Equal(t, "inbox", state["title"])
	todos, ok := state["todos"].([]any)
	require.True(t, ok)
	require.Len(t, todos, 1)
	assert.Equal(t, "first", todos[0].(map[string]any)["text"])
}

func TestParseStateEmpty(t *testing.T) {
	state, err := ParseState([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestParseStateEnvExpansion(t *testing.T) {
	t.Setenv("GROVE_TEST_TITLE", "from-env")

	state, err := ParseState([]byte(`
title: ${GROVE_TEST_TITLE}
fallback: ${GROVE_TEST_UNSET:-default-value}
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", state["title"])
	assert.Equal(t, "default-value", state["fallback"])
}

func TestLoadState(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("count: 3\n"), 0o644))

	state, err := LoadState(seed)
	require.NoError(t, err)
	assert.Equal(t, 3, state["count"])

	_, err = LoadState(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNamespacedStore(t *testing.T) {
	type cartEffects struct{ tax float64 }

	cfg := Namespaced(map[string]store.Config{
		"cart": {
			State:   map[string]any{"items": []any{}},
			Effects: &cartEffects{tax: 0.2},
			Actions: map[string]action.Func{
				"add": func(c *action.Context, payload any) (any, error) {
					return c.Effects.(*cartEffects).tax, c.State.List("items").Push(payload)
				},
			},
			Derived: map[string]derive.Func{
				"count": func(root *track.Object) (any, error) {
					return root.List("items").Len(), nil
				},
			},
		},
		"profile": {
			State: map[string]any{"name": ""},
			Actions: map[string]action.Func{
				"rename": func(c *action.Context, payload any) (any, error) {
					return nil, c.State.Set("name", payload)
				},
			},
		},
	})

	s, err := store.New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	ctx := context.Background()

	tax, err := s.Run(ctx, "cart.add", "apples")
	require.NoError(t, err)
	assert.Equal(t, 0.2, tax)

	_, err = s.Run(ctx, "profile.rename", "ada")
	require.NoError(t, err)

	assert.Equal(t, 1, s.State().Object("cart").List("items").Len())
	assert.Equal(t, "ada", s.State().Object("profile").Get("name"))

	v, err := s.Derived("cart.count")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
