package codec

import (
	"fmt"

	"github.com/ohler55/ojg/oj"

	"github.com/getgrove/grove/pkg/path"
	"github.com/getgrove/grove/pkg/track"
)

// SerializationError is raised when a snapshot reaches a model whose
// type has no serializer. Models carry behavior that plain data cannot;
// a type that should appear in snapshots must say how.
type SerializationError struct {
	// Path is the model's address.
	Path path.Path
	// TypeName is the model type's name, "" for an untyped model.
	TypeName string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("model %q at %s has no serializer", e.TypeName, e.Path)
}

// Snapshot converts the tree under root to plain data. Objects become
// maps, lists become slices, models go through their type's serializer.
func Snapshot(root *track.Object) (map[string]any, error) {
	out := make(map[string]any)
	for _, key := range root.Keys() {
		v, err := snapshotValue(root.Get(key), root.Address().Field(key))
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func snapshotValue(v any, at path.Path) (any, error) {
	switch val := v.(type) {
	case *track.Object:
		out := make(map[string]any)
		for _, key := range val.Keys() {
			sv, err := snapshotValue(val.Get(key), at.Field(key))
			if err != nil {
				return nil, err
			}
			out[key] = sv
		}
		return out, nil

	case *track.List:
		items := val.Values()
		out := make([]any, len(items))
		for i, item := range items {
			sv, err := snapshotValue(item, at.At(i))
			if err != nil {
				return nil, err
			}
			out[i] = sv
		}
		return out, nil

	case *track.Model:
		mt := val.Type()
		if mt == nil || mt.Serialize == nil {
			name := ""
			if mt != nil {
				name = mt.Name
			}
			return nil, &SerializationError{Path: at, TypeName: name}
		}
		fields, err := mt.Serialize(val)
		if err != nil {
			return nil, fmt.Errorf("serialize %q at %s: %w", mt.Name, at, err)
		}
		return fields, nil

	default:
		return v, nil
	}
}

// MarshalSnapshot encodes a snapshot as JSON.
func MarshalSnapshot(snapshot map[string]any) ([]byte, error) {
	return oj.Marshal(snapshot)
}

// UnmarshalSnapshot decodes a JSON snapshot.
func UnmarshalSnapshot(data []byte) (map[string]any, error) {
	var snapshot map[string]any
	if err := oj.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return snapshot, nil
}
