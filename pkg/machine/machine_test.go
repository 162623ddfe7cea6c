package machine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/track"
)

func newTestTree(t *testing.T, strict bool) *track.Tree {
	t.Helper()
	tree := track.NewTree(nil, nil)
	tree.SetStrict(strict)
	s := batch.NewScope(batch.FlusherFunc(func([]batch.Event) {}))
	tree.PushScope(s)
	t.Cleanup(func() { tree.PopScope(s) })
	return tree
}

func lightSpec() Spec {
	return Spec{
		Field:   "mode",
		Initial: "off",
		States: map[string][]string{
			"dimmed": {"brightness"},
		},
		Transitions: map[string]map[string]Handler{
			"off": {
				"toggle": func(m *Machine, payload any) (*NextState, error) {
					return To("on"), nil
				},
			},
			"on": {
				"toggle": func(m *Machine, payload any) (*NextState, error) {
					return nil, m.Transition("off")
				},
				"dim": func(m *Machine, payload any) (*NextState, error) {
					return &NextState{
						State:  "dimmed",
						Fields: map[string]any{"brightness": payload},
					}, nil
				},
			},
			"dimmed": {
				"toggle": func(m *Machine, payload any) (*NextState, error) {
					return To("off"), nil
				},
			},
		},
	}
}

func TestInitialState(t *testing.T) {
	tree := newTestTree(t, false)
	m, err := New(tree, tree.Root(), lightSpec(), nil)
	require.NoError(t, err)

	assert.Equal(t, "off", m.Current())
	assert.True(t, m.In("off"))
}

func TestSendRunsTransition(t *testing.T) {
	tree := newTestTree(t, false)
	m, err := New(tree, tree.Root(), lightSpec(), nil)
	require.NoError(t, err)

	handled, err := m.Send("toggle", nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "on", m.Current())

	// State is plain tracked data, visible without the machine.
	assert.Equal(t, "on", tree.Root().Get("mode"))
}

func TestUnacceptedEventIsDropped(t *testing.T) {
	tree := newTestTree(t, false)
	m, err := New(tree, tree.Root(), lightSpec(), nil)
	require.NoError(t, err)

	handled, err := m.Send("dim", 40) // only legal while on
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, "off", m.Current())
	assert.Nil(t, tree.Root().Get("brightness"))
}

func TestNextStateCarriesFields(t *testing.T) {
	tree := newTestTree(t, false)
	m, err := New(tree, tree.Root(), lightSpec(), nil)
	require.NoError(t, err)

	_, err = m.Send("toggle", nil)
	require.NoError(t, err)
	handled, err := m.Send("dim", 40)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "dimmed", m.Current())
	assert.Equal(t, 40, tree.Root().Get("brightness"))
}

func TestNextStateRemovesOldStateFields(t *testing.T) {
	tree := newTestTree(t, false)
	m, err := New(tree, tree.Root(), lightSpec(), nil)
	require.NoError(t, err)

	_, err = m.Send("toggle", nil)
	require.NoError(t, err)
	_, err = m.Send("dim", 40)
	require.NoError(t, err)
	require.Equal(t, 40, tree.Root().Get("brightness"))

	// Leaving dimmed drops its declared field along with the state.
	handled, err := m.Send("toggle", nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "off", m.Current())
	assert.False(t, tree.Root().Has("brightness"))
}

func TestNextStateKeepsSharedFields(t *testing.T) {
	tree := newTestTree(t, false)
	spec := Spec{
		Initial: "loading",
		States: map[string][]string{
			"loading":  {"url", "attempt"},
			"retrying": {"url", "attempt"},
			"done":     {"url", "body"},
		},
		Transitions: map[string]map[string]Handler{
			"loading": {
				"fail": func(m *Machine, payload any) (*NextState, error) {
					n, _ := m.Target().Get("attempt").(int)
					return &NextState{
						State:  "retrying",
						Fields: map[string]any{"attempt": n + 1},
					}, nil
				},
				"ok": func(m *Machine, payload any) (*NextState, error) {
					return &NextState{
						State:  "done",
						Fields: map[string]any{"body": payload},
					}, nil
				},
			},
		},
	}
	m, err := New(tree, tree.Root(), spec, nil)
	require.NoError(t, err)
	require.NoError(t, tree.Root().Set("url", "https://example.com"))
	require.NoError(t, tree.Root().Set("attempt", 1))

	// A field declared by both states survives the swap untouched.
	_, err = m.Send("fail", nil)
	require.NoError(t, err)
	assert.Equal(t, "retrying", m.Current())
	assert.Equal(t, "https://example.com", tree.Root().Get("url"))
	assert.Equal(t, 2, tree.Root().Get("attempt"))
}

func TestStrictModeOnlyAllowsWritesInSend(t *testing.T) {
	tree := newTestTree(t, true)
	m, err := New(tree, tree.Root(), lightSpec(), nil)
	require.NoError(t, err)

	// Direct writes are rejected.
	werr := tree.Root().Set("mode", "on")
	var merr *batch.MutationOutsideActionError
	require.ErrorAs(t, werr, &merr)
	assert.True(t, merr.Strict)

	// The same write inside a transition succeeds.
	handled, err := m.Send("toggle", nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "on", m.Current())
}

func TestSendFromDropsStaleSends(t *testing.T) {
	tree := newTestTree(t, false)
	m, err := New(tree, tree.Root(), lightSpec(), nil)
	require.NoError(t, err)

	_, err = m.Send("toggle", nil) // now on
	require.NoError(t, err)

	// A continuation that believed the machine was still off.
	handled, err := m.SendFrom("off", "toggle", nil)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, "on", m.Current())

	handled, err = m.SendFrom("on", "toggle", nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, "off", m.Current())
}

func TestHandlerErrorPropagates(t *testing.T) {
	tree := newTestTree(t, false)
	boom := errors.New("boom")
	spec := Spec{
		Initial: "idle",
		Transitions: map[string]map[string]Handler{
			"idle": {
				"go": func(m *Machine, payload any) (*NextState, error) { return nil, boom },
			},
		},
	}
	m, err := New(tree, tree.Root(), spec, nil)
	require.NoError(t, err)

	handled, err := m.Send("go", nil)
	assert.True(t, handled)
	assert.ErrorIs(t, err, boom)
}

func TestNewValidation(t *testing.T) {
	tree := newTestTree(t, false)

	_, err := New(tree, nil, lightSpec(), nil)
	assert.Error(t, err)

	_, err = New(tree, tree.Root(), Spec{}, nil)
	assert.Error(t, err)
}
