package codec

import (
	"fmt"

	"github.com/getgrove/grove/pkg/path"
	"github.com/getgrove/grove/pkg/track"
)

// Shape says how models are laid out at a registered path.
type Shape int

const (
	// ShapeSingle revives the value at the path itself as one model.
	ShapeSingle Shape = iota
	// ShapeSlice revives each element of the list at the path.
	ShapeSlice
	// ShapeMap revives each value of the object at the path.
	ShapeMap
)

// Factory builds a detached model from its snapshot fields.
type Factory func(fields map[string]any) (*track.Model, error)

// ModelFactory is a Factory for a plain model type: the snapshot fields
// become the model's initial fields unchanged.
func ModelFactory(mt *track.ModelType) Factory {
	return func(fields map[string]any) (*track.Model, error) {
		return track.NewModel(mt, fields), nil
	}
}

type factoryRule struct {
	at      path.Path
	shape   Shape
	factory Factory
}

// Rehydrator applies snapshots back onto a tree, reviving models at
// registered paths.
type Rehydrator struct {
	rules []factoryRule
}

// NewRehydrator creates a rehydrator with no registrations; without
// any, snapshots apply as plain data.
func NewRehydrator() *Rehydrator {
	return &Rehydrator{}
}

// RegisterModel revives models at the given path with the given shape.
// The path addresses where the models live in the tree, for example
// "$.todos" with ShapeSlice for a list of models.
func (r *Rehydrator) RegisterModel(at string, shape Shape, factory Factory) error {
	p, err := path.Parse(at)
	if err != nil {
		return fmt.Errorf("register model at %q: %w", at, err)
	}
	r.rules = append(r.rules, factoryRule{at: p, shape: shape, factory: factory})
	return nil
}

// Apply writes the snapshot onto the root through the normal tracked
// accessors. The caller provides the batch context: apply inside an
// operation so observers of the replaced state are notified once.
func (r *Rehydrator) Apply(root *track.Object, snapshot map[string]any) error {
	for key, v := range snapshot {
		revived, err := r.revive(v, path.Root().Field(key))
		if err != nil {
			return err
		}
		if err := root.Set(key, revived); err != nil {
			return fmt.Errorf("rehydrate %s: %w", path.Root().Field(key), err)
		}
	}
	return nil
}

func (r *Rehydrator) ruleAt(p path.Path) *factoryRule {
	for i := range r.rules {
		if r.rules[i].at.Equal(p) {
			return &r.rules[i]
		}
	}
	return nil
}

func (r *Rehydrator) revive(v any, at path.Path) (any, error) {
	if rule := r.ruleAt(at); rule != nil {
		switch rule.shape {
		case ShapeSingle:
			fields, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("rehydrate %s: expected object, got %T", at, v)
			}
			return rule.factory(fields)

		case ShapeSlice:
			items, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("rehydrate %s: expected list, got %T", at, v)
			}
			out := make([]any, len(items))
			for i, item := range items {
				fields, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("rehydrate %s: expected object, got %T", at.At(i), item)
				}
				m, err := rule.factory(fields)
				if err != nil {
					return nil, fmt.Errorf("rehydrate %s: %w", at.At(i), err)
				}
				out[i] = m
			}
			return out, nil

		case ShapeMap:
			values, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("rehydrate %s: expected object, got %T", at, v)
			}
			out := make(map[string]any, len(values))
			for k, item := range values {
				fields, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("rehydrate %s: expected object, got %T", at.Field(k), item)
				}
				m, err := rule.factory(fields)
				if err != nil {
					return nil, fmt.Errorf("rehydrate %s: %w", at.Field(k), err)
				}
				out[k] = m
			}
			return out, nil
		}
	}

	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, cv := range val {
			revived, err := r.revive(cv, at.Field(k))
			if err != nil {
				return nil, err
			}
			out[k] = revived
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, cv := range val {
			revived, err := r.revive(cv, at.At(i))
			if err != nil {
				return nil, err
			}
			out[i] = revived
		}
		return out, nil
	default:
		return v, nil
	}
}
