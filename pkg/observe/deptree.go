package observe

import (
	"sort"

	"github.com/getgrove/grove/pkg/path"
)

// Dep is one recorded dependency: a path that was read, and whether the
// read was nested (iteration, key listing, or traversal into children),
// in which case descendant mutations also count as hits.
type Dep struct {
	Path   path.Path
	Nested bool
}

// DepTree records the set of paths an observer read during its last
// evaluation. Not safe for concurrent use; a tree is only ever written
// by the single collector that owns it.
type DepTree struct {
	entries map[string]Dep
}

// NewDepTree returns an empty dependency tree.
func NewDepTree() *DepTree {
	return &DepTree{entries: make(map[string]Dep)}
}

// Add records a read of p. A nested read upgrades an existing exact
// entry; it is never downgraded.
func (t *DepTree) Add(p path.Path, nested bool) {
	key := p.String()
	if existing, ok := t.entries[key]; ok {
		if nested && !existing.Nested {
			existing.Nested = true
			t.entries[key] = existing
		}
		return
	}
	t.entries[key] = Dep{Path: p, Nested: nested}
}

// Len returns the number of distinct recorded paths.
func (t *DepTree) Len() int { return len(t.entries) }

// Contains returns the entry for the exact path, if recorded.
func (t *DepTree) Contains(p path.Path) (Dep, bool) {
	d, ok := t.entries[p.String()]
	return d, ok
}

// Deps returns all entries sorted by path string for deterministic
// iteration.
func (t *DepTree) Deps() []Dep {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Dep, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.entries[k])
	}
	return out
}

// Matches reports whether a mutation at the given path intersects this
// tree. A dependency D matches mutation M when:
//
//   - D equals M (the exact value the observer read changed), or
//   - M is an ancestor of D (a container above the read was replaced
//     wholesale, so the read path may now resolve differently), or
//   - D is nested and M is a descendant of D (the observer depends on
//     the whole subtree).
func (t *DepTree) Matches(mutated path.Path) bool {
	for _, d := range t.entries {
		if d.Path.Equal(mutated) {
			return true
		}
		if mutated.IsStrictPrefixOf(d.Path) {
			return true
		}
		if d.Nested && d.Path.IsStrictPrefixOf(mutated) {
			return true
		}
	}
	return false
}

// MatchesAny reports whether any of the mutated paths intersects the tree.
func (t *DepTree) MatchesAny(mutated []path.Path) bool {
	for _, m := range mutated {
		if t.Matches(m) {
			return true
		}
	}
	return false
}
