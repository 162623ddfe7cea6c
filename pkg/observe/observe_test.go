package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getgrove/grove/pkg/path"
)

func p(s string) path.Path { return path.MustParse(s) }

func TestDepTree_Matches(t *testing.T) {
	tree := NewDepTree()
	tree.Add(p("user.name"), false)
	tree.Add(p("posts"), true)

	tests := []struct {
		name    string
		mutated string
		want    bool
	}{
		{"exact hit", "user.name", true},
		{"ancestor replaced", "user", true},
		{"root replaced", "$", true},
		{"sibling miss", "user.email", false},
		{"descendant of plain dep", "user.name.first", false},
		{"nested exact", "posts", true},
		{"nested descendant", "posts[3].title", true},
		{"unrelated", "settings.theme", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tree.Matches(p(tt.mutated)))
		})
	}
}

func TestDepTree_NestedUpgradeSticks(t *testing.T) {
	tree := NewDepTree()
	tree.Add(p("items"), false)
	tree.Add(p("items"), true)
	tree.Add(p("items"), false)

	d, ok := tree.Contains(p("items"))
	require.True(t, ok)
	assert.True(t, d.Nested)
	assert.Equal(t, 1, tree.Len())
}

func TestCollector_StartStop(t *testing.T) {
	reg := NewRegistry(nil)
	col := NewCollector(reg)
	obs := reg.Subscribe("component", func() {})

	require.NoError(t, col.Start(obs))
	col.Record(p("user.name"), false)
	col.Record(p("posts"), true)

	tree, err := col.Stop()
	require.NoError(t, err)
	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, 2, obs.Deps().Len())

	// Reads attributed only while collecting.
	col.Record(p("ignored"), false)
	assert.Equal(t, 2, obs.Deps().Len())
}

func TestCollector_StopTwice(t *testing.T) {
	reg := NewRegistry(nil)
	col := NewCollector(reg)
	obs := reg.Subscribe("c", func() {})

	require.NoError(t, col.Start(obs))
	_, err := col.Stop()
	require.NoError(t, err)

	_, err = col.Stop()
	assert.ErrorIs(t, err, ErrNotCollecting)
}

func TestCollector_StartWhileOpen(t *testing.T) {
	reg := NewRegistry(nil)
	col := NewCollector(reg)
	a := reg.Subscribe("a", func() {})
	b := reg.Subscribe("b", func() {})

	require.NoError(t, col.Start(a))
	assert.ErrorIs(t, col.Start(b), ErrAlreadyCollecting)
	_, err := col.Stop()
	require.NoError(t, err)
}

func TestRegistry_Reconcile(t *testing.T) {
	reg := NewRegistry(nil)
	col := NewCollector(reg)
	obs := reg.Subscribe("component", func() {})

	require.NoError(t, col.Start(obs))
	col.Record(p("user.name"), false)
	_, err := col.Stop()
	require.NoError(t, err)
	assert.Contains(t, reg.ReadersOf(p("user.name")), obs.ID())

	// Next evaluation reads a different path; the old registration is shed.
	require.NoError(t, col.Start(obs))
	col.Record(p("user.email"), false)
	_, err = col.Stop()
	require.NoError(t, err)

	assert.Empty(t, reg.ReadersOf(p("user.name")))
	assert.Contains(t, reg.ReadersOf(p("user.email")), obs.ID())
}

func TestRegistry_Unsubscribe(t *testing.T) {
	reg := NewRegistry(nil)
	col := NewCollector(reg)
	obs := reg.Subscribe("component", func() {})

	require.NoError(t, col.Start(obs))
	col.Record(p("user.name"), false)
	_, err := col.Stop()
	require.NoError(t, err)

	reg.Unsubscribe(obs)
	assert.Empty(t, reg.ReadersOf(p("user.name")))
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Match([]path.Path{p("user.name")}))

	// Unsubscribing again is a no-op.
	reg.Unsubscribe(obs)
}

func TestRegistry_MatchOrderAndDedup(t *testing.T) {
	reg := NewRegistry(nil)
	col := NewCollector(reg)

	first := reg.Subscribe("first", func() {})
	second := reg.Subscribe("second", func() {})

	collect := func(o *Observer, paths ...string) {
		require.NoError(t, col.Start(o))
		for _, s := range paths {
			col.Record(p(s), false)
		}
		_, err := col.Stop()
		require.NoError(t, err)
	}
	collect(second, "a", "b")
	collect(first, "a")

	matched := reg.Match([]path.Path{p("a"), p("b")})
	require.Len(t, matched, 2)
	// Registration order, not collection order; each observer once even
	// though both of second's deps were hit.
	assert.Equal(t, first.ID(), matched[0].ID())
	assert.Equal(t, second.ID(), matched[1].ID())
}
