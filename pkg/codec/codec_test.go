package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/track"
)

func openScope(t *testing.T, tree *track.Tree) *batch.Scope {
	t.Helper()
	s := batch.NewScope(batch.FlusherFunc(func([]batch.Event) {}))
	tree.PushScope(s)
	t.Cleanup(func() { tree.PopScope(s) })
	return s
}

var todoType = &track.ModelType{
	Name: "Todo",
	Methods: map[string]track.Method{
		"complete": func(m *track.Model, args ...any) (any, error) {
			return nil, m.Set("done", true)
		},
	},
	Serialize: func(m *track.Model) (map[string]any, error) {
		return map[string]any{
			"text": m.Get("text"),
			"done": m.Get("done"),
		}, nil
	},
}

func TestSnapshotPlainTree(t *testing.T) {
	tree := track.NewTree(nil, nil)
	require.NoError(t, tree.Load(map[string]any{
		"title": "inbox",
		"todos": []any{
			map[string]any{"text": "a", "done": false},
		},
	}))

	snap, err := Snapshot(tree.Root())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title": "inbox",
		"todos": []any{
			map[string]any{"text": "a", "done": false},
		},
	}, snap)
}

func TestSnapshotSerializesModels(t *testing.T) {
	tree := track.NewTree(nil, nil)
	require.NoError(t, tree.Load(map[string]any{
		"todos": []any{
			track.NewModel(todoType, map[string]any{"text": "a", "done": false}),
		},
	}))

	snap, err := Snapshot(tree.Root())
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"text": "a", "done": false},
	}, snap["todos"])
}

func TestSnapshotFailsWithoutSerializer(t *testing.T) {
	bare := &track.ModelType{Name: "Bare"}
	tree := track.NewTree(nil, nil)
	require.NoError(t, tree.Load(map[string]any{
		"thing": track.NewModel(bare, map[string]any{"x": 1}),
	}))

	_, err := Snapshot(tree.Root())
	var serr *SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "Bare", serr.TypeName)
	assert.Equal(t, "$.thing", serr.Path.String())
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	snap := map[string]any{"title": "inbox", "count": int64(3)}
	data, err := MarshalSnapshot(snap)
	require.NoError(t, err)

	back, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "inbox", back["title"])
}

func TestRehydrateRevivesModels(t *testing.T) {
	r := NewRehydrator()
	require.NoError(t, r.RegisterModel("$.todos", ShapeSlice, ModelFactory(todoType)))

	tree := track.NewTree(nil, nil)
	openScope(t, tree)

	err := r.Apply(tree.Root(), map[string]any{
		"title": "inbox",
		"todos": []any{
			map[string]any{"text": "a", "done": false},
			map[string]any{"text": "b", "done": true},
		},
	})
	require.NoError(t, err)

	todos := tree.Root().List("todos")
	require.NotNil(t, todos)
	m := todos.Model(0)
	require.NotNil(t, m)
	assert.Equal(t, "Todo", m.Type().Name)

	// The revived model has its behavior back.
	_, err = m.Call("complete")
	require.NoError(t, err)
	assert.Equal(t, true, m.Get("done"))
}

func TestRehydrateSingleAndMapShapes(t *testing.T) {
	r := NewRehydrator()
	require.NoError(t, r.RegisterModel("$.current", ShapeSingle, ModelFactory(todoType)))
	require.NoError(t, r.RegisterModel("$.byId", ShapeMap, ModelFactory(todoType)))

	tree := track.NewTree(nil, nil)
	openScope(t, tree)

	err := r.Apply(tree.Root(), map[string]any{
		"current": map[string]any{"text": "now", "done": false},
		"byId": map[string]any{
			"1": map[string]any{"text": "a", "done": true},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, tree.Root().Model("current"))
	assert.Equal(t, "now", tree.Root().Model("current").Get("text"))
	require.NotNil(t, tree.Root().Object("byId").Model("1"))
}

func TestRehydrateShapeMismatch(t *testing.T) {
	r := NewRehydrator()
	require.NoError(t, r.RegisterModel("$.todos", ShapeSlice, ModelFactory(todoType)))

	tree := track.NewTree(nil, nil)
	openScope(t, tree)

	err := r.Apply(tree.Root(), map[string]any{"todos": "not a list"})
	assert.Error(t, err)
}

func TestLogCapturesAndReplays(t *testing.T) {
	tree := track.NewTree(nil, nil)
	log := NewLog(tree)
	tree.SetEventHook(log.Append)
	openScope(t, tree)

	root := tree.Root()
	require.NoError(t, root.Set("title", "inbox"))
	require.NoError(t, root.Set("todos", []any{"a"}))
	require.NoError(t, root.List("todos").Push("b"))
	require.NoError(t, root.Set("tmp", 1))
	require.NoError(t, root.Delete("tmp"))

	entries := log.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, "splice", entries[2].Type)
	assert.Equal(t, []any{"a", "b"}, entries[2].Value)

	// Replay onto a fresh tree reproduces the final state.
	fresh := track.NewTree(nil, nil)
	openScope(t, fresh)
	require.NoError(t, Replay(fresh.Root(), entries))

	assert.Equal(t, "inbox", fresh.Root().Get("title"))
	assert.Equal(t, []any{"a", "b"}, fresh.Root().List("todos").Values())
	assert.False(t, fresh.Root().Has("tmp"))
}

func TestLogJSONRoundTrip(t *testing.T) {
	tree := track.NewTree(nil, nil)
	log := NewLog(tree)
	tree.SetEventHook(log.Append)
	openScope(t, tree)
	require.NoError(t, tree.Root().Set("a", 1))

	data, err := log.Marshal()
	require.NoError(t, err)

	entries, err := ParseLog(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "$.a", entries[0].Path)
	assert.Equal(t, "set", entries[0].Type)
}

func TestSchemaValidator(t *testing.T) {
	v := NewSchemaValidator(map[string]any{
		"type":     "object",
		"required": []any{"title"},
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
	})

	require.NoError(t, v.Validate(map[string]any{"title": "inbox", "count": 3}))

	err := v.Validate(map[string]any{"count": "three"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}
