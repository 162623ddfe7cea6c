package track

import (
	"errors"
	"sort"

	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/path"
)

// List is a tracked integer-indexed container.
//
// In-place mutators (Push, Pop, Splice, Sort) record one splice event
// for the whole list address rather than per-index events: observers
// generally depend on the list's identity and length, not individual
// slots. After any splice, descendant addresses are recomputed so
// shifted elements keep exactly one valid address.
type List struct {
	tree  *Tree
	addr  path.Path
	items []any
	gen   uint64
}

func (l *List) container() {}

// Address returns the list's current address.
func (l *List) Address() path.Path {
	l.tree.mu.RLock()
	defer l.tree.mu.RUnlock()
	return l.addr
}

// Generation returns the structural mutation counter.
func (l *List) Generation() uint64 {
	l.tree.mu.RLock()
	defer l.tree.mu.RUnlock()
	return l.gen
}

// At returns the element at index i, or nil when out of range.
func (l *List) At(i int) any {
	l.tree.mu.RLock()
	target := l.addr.At(i)
	var v any
	if i >= 0 && i < len(l.items) {
		v = l.items[i]
	}
	l.tree.mu.RUnlock()

	l.tree.record(target, false)
	return v
}

// Object returns the element at i as an object, or nil.
func (l *List) Object(i int) *Object {
	child, _ := l.At(i).(*Object)
	return child
}

// Model returns the element at i as a model, or nil.
func (l *List) Model(i int) *Model {
	child, _ := l.At(i).(*Model)
	return child
}

// Len returns the number of elements. Length reads depend on the list
// itself, which is exactly what splice events target.
func (l *List) Len() int {
	l.tree.mu.RLock()
	addr := l.addr
	n := len(l.items)
	l.tree.mu.RUnlock()

	l.tree.record(addr, false)
	return n
}

// Values returns a copy of the element slice. Iteration is a nested
// read: the observer depends on the whole list subtree.
func (l *List) Values() []any {
	l.tree.mu.RLock()
	addr := l.addr
	out := make([]any, len(l.items))
	copy(out, l.items)
	l.tree.mu.RUnlock()

	l.tree.record(addr, true)
	return out
}

// ErrIndexOutOfRange is returned by Set for an index with no element.
// Growing a list goes through Push or Splice.
var ErrIndexOutOfRange = errors.New("list index out of range")

// Set assigns the element at index i, which must be in range. Setting
// nil is not meaningful for lists; remove elements with Splice.
func (l *List) Set(i int, v any) error {
	t := l.tree
	t.mu.RLock()
	target := l.addr.At(i)
	t.mu.RUnlock()

	s, err := t.writeScope(target)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if i < 0 || i >= len(l.items) {
		t.mu.Unlock()
		return ErrIndexOutOfRange
	}
	target = l.addr.At(i)
	var reg []Container
	adopted, err := t.adopt(v, target, &reg)
	if err != nil {
		t.rollback(reg)
		t.mu.Unlock()
		return err
	}
	prev := l.items[i]
	if prev != adopted {
		t.disown(prev)
	}
	l.items[i] = adopted
	t.mu.Unlock()

	t.recordEvent(s, batch.Event{
		Path:     target,
		Type:     batch.TypeSet,
		Previous: prev,
		Value:    adopted,
	})
	return nil
}

// Push appends values to the end of the list.
func (l *List) Push(vs ...any) error {
	return l.splice(func(items []any) ([]any, []any, error) {
		next := make([]any, 0, len(items)+len(vs))
		next = append(next, items...)
		next = append(next, vs...)
		return next, nil, nil
	})
}

// Pop removes and returns the last element. Popping an empty list
// returns nil and records no event.
func (l *List) Pop() (any, error) {
	var popped any
	err := l.splice(func(items []any) ([]any, []any, error) {
		if len(items) == 0 {
			return nil, nil, errNoSplice
		}
		popped = items[len(items)-1]
		return items[:len(items)-1], []any{popped}, nil
	})
	return popped, err
}

// Splice removes deleteCount elements starting at start and inserts the
// given values in their place, returning the removed elements.
func (l *List) Splice(start, deleteCount int, ins ...any) ([]any, error) {
	var removed []any
	err := l.splice(func(items []any) ([]any, []any, error) {
		if start < 0 {
			start = 0
		}
		if start > len(items) {
			start = len(items)
		}
		if deleteCount < 0 {
			deleteCount = 0
		}
		if start+deleteCount > len(items) {
			deleteCount = len(items) - start
		}
		removed = append(removed, items[start:start+deleteCount]...)

		next := make([]any, 0, len(items)-deleteCount+len(ins))
		next = append(next, items[:start]...)
		next = append(next, ins...)
		next = append(next, items[start+deleteCount:]...)
		return next, removed, nil
	})
	return removed, err
}

// Sort reorders the elements in place using the given comparison.
func (l *List) Sort(less func(a, b any) bool) error {
	return l.splice(func(items []any) ([]any, []any, error) {
		sorted := make([]any, len(items))
		copy(sorted, items)
		sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
		return sorted, nil, nil
	})
}

// errNoSplice aborts a splice without recording an event.
var errNoSplice = errors.New("no splice")

// splice applies an in-place restructuring as one splice event. fn maps
// the current elements to the next element slice (a mix of surviving
// tracked values and raw insertions) plus the removed elements.
// Removed containers are disowned, insertions adopted, and every
// surviving element rebased to its new index.
func (l *List) splice(fn func(items []any) (next []any, removed []any, err error)) error {
	t := l.tree
	t.mu.RLock()
	addr := l.addr
	t.mu.RUnlock()

	s, err := t.writeScope(addr)
	if err != nil {
		return err
	}

	t.mu.Lock()
	addr = l.addr
	prevLen := len(l.items)
	next, removed, err := fn(l.items)
	if err != nil {
		t.mu.Unlock()
		if errors.Is(err, errNoSplice) {
			return nil
		}
		return err
	}

	survivors := make(map[Container]bool, len(l.items))
	for _, v := range l.items {
		if c, ok := v.(Container); ok {
			survivors[c] = true
		}
	}
	for _, v := range removed {
		if c, ok := v.(Container); ok {
			delete(survivors, c)
		}
		t.disown(v)
	}

	var reg []Container
	final := make([]any, 0, len(next))
	seen := make(map[Container]bool, len(next))
	for i, v := range next {
		if c, ok := v.(Container); ok {
			if existing, owned := t.owners[c]; owned {
				// Shifted survivors keep their identity; a container
				// owned anywhere else (including twice in this list)
				// violates the single-address invariant.
				if !survivors[c] || seen[c] {
					t.rollback(reg)
					t.mu.Unlock()
					return &AddressConflictError{Existing: existing, Attempted: addr.At(i)}
				}
				seen[c] = true
				final = append(final, c)
				continue
			}
		}
		adopted, aerr := t.adopt(v, addr.At(i), &reg)
		if aerr != nil {
			t.rollback(reg)
			t.mu.Unlock()
			return aerr
		}
		if c, ok := adopted.(Container); ok {
			seen[c] = true
		}
		final = append(final, adopted)
	}

	l.items = final
	l.gen++
	for i, v := range l.items {
		t.rebase(v, addr.At(i))
	}
	newLen := len(l.items)
	t.mu.Unlock()

	t.recordEvent(s, batch.Event{
		Path:     addr,
		Type:     batch.TypeSplice,
		Previous: prevLen,
		Value:    newLen,
	})
	return nil
}
