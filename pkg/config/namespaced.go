package config

import (
	"fmt"

	"github.com/getgrove/grove/pkg/action"
	"github.com/getgrove/grove/pkg/derive"
	"github.com/getgrove/grove/pkg/store"
	"github.com/getgrove/grove/pkg/track"
)

// Namespaced composes namespace configurations into one store
// configuration. Each namespace's state lands under its key, its
// operations register as "<ns>.<op>" and run against the namespace
// subtree, its derived values as "<ns>.<key>", and its effects replace
// c.Effects for its own operations.
func Namespaced(namespaces map[string]store.Config) store.Config {
	combined := store.Config{
		State:   make(map[string]any, len(namespaces)),
		Actions: make(map[string]action.Func),
		Derived: make(map[string]derive.Func),
	}

	for ns, cfg := range namespaces {
		combined.State[ns] = cfg.State

		for op, fn := range cfg.Actions {
			combined.Actions[ns+"."+op] = scopedAction(ns, fn, cfg.Effects)
		}
		for key, fn := range cfg.Derived {
			combined.Derived[ns+"."+key] = scopedDerive(ns, fn)
		}
	}
	return combined
}

func scopedAction(ns string, fn action.Func, effects any) action.Func {
	return func(c *action.Context, payload any) (any, error) {
		sub := c.State.Object(ns)
		if sub == nil {
			return nil, fmt.Errorf("namespace %q state is missing", ns)
		}
		c.State = sub
		if effects != nil {
			c.Effects = effects
		}
		return fn(c, payload)
	}
}

func scopedDerive(ns string, fn derive.Func) derive.Func {
	return func(root *track.Object) (any, error) {
		sub := root.Object(ns)
		if sub == nil {
			return nil, fmt.Errorf("namespace %q state is missing", ns)
		}
		return fn(sub)
	}
}
