package track

import (
	"log/slog"
	"sync"

	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/logging"
	"github.com/getgrove/grove/pkg/observe"
	"github.com/getgrove/grove/pkg/path"
)

// Container is implemented by the three tracked container types:
// *Object, *List, and *Model.
type Container interface {
	// Address returns the container's current address in the tree.
	Address() path.Path
	// Generation returns a counter bumped on every structural mutation
	// of the container (key added or removed, list spliced).
	Generation() uint64

	container()
}

// Tree owns one tracked state tree: the root object, the ownership
// index enforcing the single-address invariant, the stack of entered
// batch scopes, and the hooks into dependency collection and the
// inspector feed.
type Tree struct {
	collector *observe.Collector
	log       *slog.Logger

	mu           sync.RWMutex
	root         *Object
	owners       map[Container]path.Path
	scopes       []*batch.Scope
	machineDepth int
	strict       bool
	onEvent      func(batch.Event)
}

// NewTree creates an empty tree with an empty root object. Reads are
// attributed through the given collector. A nil logger disables
// logging.
func NewTree(collector *observe.Collector, log *slog.Logger) *Tree {
	if log == nil {
		log = logging.Nop()
	}
	t := &Tree{
		collector: collector,
		log:       log,
		owners:    make(map[Container]path.Path),
	}
	t.root = &Object{tree: t, addr: path.Root(), fields: make(map[string]any)}
	t.owners[t.root] = path.Root()
	return t
}

// Root returns the root object.
func (t *Tree) Root() *Object { return t.root }

// SetStrict toggles strict mode: direct writes are only legal inside a
// transition-machine send.
func (t *Tree) SetStrict(strict bool) {
	t.mu.Lock()
	t.strict = strict
	t.mu.Unlock()
}

// Strict reports whether strict mode is enabled.
func (t *Tree) Strict() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strict
}

// SetEventHook installs the callback invoked with every recorded
// mutation event; the inspector feed hangs off it. Must be set before
// the first operation runs.
func (t *Tree) SetEventHook(fn func(batch.Event)) {
	t.mu.Lock()
	t.onEvent = fn
	t.mu.Unlock()
}

// Load installs the initial state. No operation is running at
// construction time, so it bypasses batch legality and records no
// mutation events: the initial configuration is the baseline, not a
// change.
func (t *Tree) Load(initial map[string]any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, v := range initial {
		adopted, err := t.adopt(v, path.Root().Field(key), nil)
		if err != nil {
			return err
		}
		t.root.fields[key] = adopted
	}
	return nil
}

// PushScope enters a batch scope: until the matching PopScope,
// mutations bind to s. Scopes nest; writes always bind to the scope
// pushed most recently. Each operation segment (the synchronous body,
// or a continuation resuming after a suspension) pushes its own scope
// around its writes, so overlapping operations never leak mutations
// into each other's batch.
func (t *Tree) PushScope(s *batch.Scope) {
	t.mu.Lock()
	t.scopes = append(t.scopes, s)
	t.mu.Unlock()
}

// PopScope leaves a batch scope, removing the most recent push of s.
// Popping a scope that was never pushed, or was already popped, is a
// no-op.
func (t *Tree) PopScope(s *batch.Scope) {
	t.mu.Lock()
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if t.scopes[i] == s {
			t.scopes = append(t.scopes[:i], t.scopes[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
}

// Scope returns the scope mutations currently bind to, or nil if no
// open scope is entered.
func (t *Tree) Scope() *batch.Scope {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.topScope()
}

// topScope returns the most recently pushed open scope. Caller holds
// t.mu.
func (t *Tree) topScope() *batch.Scope {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if t.scopes[i].Open() {
			return t.scopes[i]
		}
	}
	return nil
}

// EnterSend marks the start of a transition-machine send, the entry
// point that legitimizes direct writes in strict mode. Sends nest.
func (t *Tree) EnterSend() {
	t.mu.Lock()
	t.machineDepth++
	t.mu.Unlock()
}

// LeaveSend marks the end of a transition-machine send.
func (t *Tree) LeaveSend() {
	t.mu.Lock()
	if t.machineDepth > 0 {
		t.machineDepth--
	}
	t.mu.Unlock()
}

// Owner returns the address a container is currently tracked at.
func (t *Tree) Owner(c Container) (path.Path, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.owners[c]
	return p, ok
}

// record attributes a read to the collecting observer, if any.
func (t *Tree) record(p path.Path, nested bool) {
	if t.collector != nil {
		t.collector.Record(p, nested)
	}
}

// writeScope validates that a mutation at p is currently permitted and
// returns the scope it belongs to. Caller must not hold t.mu.
func (t *Tree) writeScope(p path.Path) (*batch.Scope, error) {
	t.mu.RLock()
	s := t.topScope()
	strict := t.strict
	inSend := t.machineDepth > 0
	t.mu.RUnlock()

	if s == nil {
		return nil, &batch.MutationOutsideActionError{Path: p}
	}
	if strict && !inSend {
		return nil, &batch.MutationOutsideActionError{Path: p, Strict: true}
	}
	return s, nil
}

// recordEvent appends the event to the scope and feeds the inspector
// hook. Caller must not hold t.mu.
func (t *Tree) recordEvent(s *batch.Scope, ev batch.Event) {
	s.Record(ev)

	t.mu.RLock()
	hook := t.onEvent
	t.mu.RUnlock()
	if hook != nil {
		hook(ev)
	}
}

// adopt converts a raw value into its tracked form at the given
// address, registering ownership for every container it creates or
// claims. When reg is non-nil, each registration is also appended to it
// so the caller can roll back on a later failure. Caller holds t.mu.
func (t *Tree) adopt(v any, addr path.Path, reg *[]Container) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil

	case *Object, *List, *Model:
		c := v.(Container)
		if existing, owned := t.owners[c]; owned {
			if existing.Equal(addr) {
				return v, nil
			}
			return nil, &AddressConflictError{Existing: existing, Attempted: addr}
		}
		if err := t.claim(c, addr, reg); err != nil {
			return nil, err
		}
		return v, nil

	case map[string]any:
		o := &Object{tree: t, addr: addr, fields: make(map[string]any, len(val))}
		t.register(o, addr, reg)
		for k, cv := range val {
			adopted, err := t.adopt(cv, addr.Field(k), reg)
			if err != nil {
				return nil, err
			}
			o.fields[k] = adopted
		}
		return o, nil

	case []any:
		l := &List{tree: t, addr: addr, items: make([]any, 0, len(val))}
		t.register(l, addr, reg)
		for i, cv := range val {
			adopted, err := t.adopt(cv, addr.At(i), reg)
			if err != nil {
				return nil, err
			}
			l.items = append(l.items, adopted)
		}
		return l, nil

	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v, nil

	default:
		return nil, &UnsupportedValueError{Path: addr, Value: v}
	}
}

// claim re-owns a detached container (and its children) at a new
// address. A model attaching for the first time has its raw field map
// adopted here. Caller holds t.mu.
func (t *Tree) claim(c Container, addr path.Path, reg *[]Container) error {
	t.register(c, addr, reg)

	switch cc := c.(type) {
	case *Object:
		cc.addr = addr
		for k, cv := range cc.fields {
			if child, ok := cv.(Container); ok {
				if err := t.claimChild(child, addr.Field(k), reg); err != nil {
					return err
				}
			}
		}
	case *List:
		cc.addr = addr
		for i, cv := range cc.items {
			if child, ok := cv.(Container); ok {
				if err := t.claimChild(child, addr.At(i), reg); err != nil {
					return err
				}
			}
		}
	case *Model:
		cc.addr = addr
		if cc.tree == nil {
			cc.tree = t
			raw := cc.rawFields
			cc.rawFields = nil
			cc.fields = make(map[string]any, len(raw))
			for k, cv := range raw {
				adopted, err := t.adopt(cv, addr.Field(k), reg)
				if err != nil {
					return err
				}
				cc.fields[k] = adopted
			}
			return nil
		}
		for k, cv := range cc.fields {
			if child, ok := cv.(Container); ok {
				if err := t.claimChild(child, addr.Field(k), reg); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// claimChild claims a descendant during a claim, rejecting children
// that are somehow owned elsewhere.
func (t *Tree) claimChild(c Container, addr path.Path, reg *[]Container) error {
	if existing, owned := t.owners[c]; owned {
		if existing.Equal(addr) {
			return nil
		}
		return &AddressConflictError{Existing: existing, Attempted: addr}
	}
	return t.claim(c, addr, reg)
}

// register records ownership. Caller holds t.mu.
func (t *Tree) register(c Container, addr path.Path, reg *[]Container) {
	t.owners[c] = addr
	if reg != nil {
		*reg = append(*reg, c)
	}
}

// rollback removes the ownership entries registered by a failed adopt.
// Caller holds t.mu.
func (t *Tree) rollback(reg []Container) {
	for _, c := range reg {
		delete(t.owners, c)
	}
}

// disown removes a detached value (and every container under it) from
// the ownership index. Stale dependency registrations for the detached
// subtree are left behind deliberately: no write will ever target its
// addresses again, so they are never notified. Caller holds t.mu.
func (t *Tree) disown(v any) {
	c, ok := v.(Container)
	if !ok {
		return
	}
	delete(t.owners, c)
	switch cc := c.(type) {
	case *Object:
		for _, cv := range cc.fields {
			t.disown(cv)
		}
	case *List:
		for _, cv := range cc.items {
			t.disown(cv)
		}
	case *Model:
		for _, cv := range cc.fields {
			t.disown(cv)
		}
	}
}

// rebase updates the recorded address of a value and its descendants
// after list indices shift. Caller holds t.mu.
func (t *Tree) rebase(v any, addr path.Path) {
	c, ok := v.(Container)
	if !ok {
		return
	}
	t.owners[c] = addr
	switch cc := c.(type) {
	case *Object:
		cc.addr = addr
		for k, cv := range cc.fields {
			t.rebase(cv, addr.Field(k))
		}
	case *List:
		cc.addr = addr
		for i, cv := range cc.items {
			t.rebase(cv, addr.At(i))
		}
	case *Model:
		cc.addr = addr
		for k, cv := range cc.fields {
			t.rebase(cv, addr.Field(k))
		}
	}
}
