package observe

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/getgrove/grove/internal/id"
	"github.com/getgrove/grove/pkg/logging"
	"github.com/getgrove/grove/pkg/path"
)

// Observer identifies a component, reaction callback, or derived-value
// entry that reads tracked state and wants change notifications.
type Observer struct {
	id     string
	name   string
	notify func()

	mu   sync.Mutex
	deps *DepTree
}

// ID returns the observer's unique identifier.
func (o *Observer) ID() string { return o.id }

// Name returns the human-readable name given at subscription.
func (o *Observer) Name() string { return o.name }

// Notify invokes the observer's callback.
func (o *Observer) Notify() {
	if o.notify != nil {
		o.notify()
	}
}

// Deps returns the dependency tree captured during the observer's last
// collection. Never nil.
func (o *Observer) Deps() *DepTree {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.deps
}

func (o *Observer) setDeps(t *DepTree) {
	o.mu.Lock()
	o.deps = t
	o.mu.Unlock()
}

// Registry holds all live observers of one store in registration order
// and maintains the read index: which observer IDs currently depend on
// which path.
type Registry struct {
	mu        sync.RWMutex
	observers map[string]*Observer
	order     []string
	readers   map[string]map[string]struct{}
	log       *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		observers: make(map[string]*Observer),
		readers:   make(map[string]map[string]struct{}),
		log:       log,
	}
}

// Subscribe registers a new observer. The notify callback runs during
// flushes whose mutations intersect the observer's dependency tree.
func (r *Registry) Subscribe(name string, notify func()) *Observer {
	o := &Observer{
		id:     id.UUID(),
		name:   name,
		notify: notify,
		deps:   NewDepTree(),
	}

	r.mu.Lock()
	r.observers[o.id] = o
	r.order = append(r.order, o.id)
	r.mu.Unlock()

	r.log.Debug("observer subscribed", "observer", name, "id", o.id)
	return o
}

// Unsubscribe removes an observer and deregisters it from every path it
// was reading. Unsubscribing an unknown observer is a no-op.
func (r *Registry) Unsubscribe(o *Observer) {
	if o == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.observers[o.id]; !ok {
		return
	}
	delete(r.observers, o.id)
	for i, oid := range r.order {
		if oid == o.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for _, d := range o.Deps().Deps() {
		r.dropReader(d.Path.String(), o.id)
	}
}

// SetDeps replaces an observer's dependency tree with a freshly
// collected one, diffing against the previous tree: paths no longer
// read are deregistered, newly read paths registered.
func (r *Registry) SetDeps(o *Observer, fresh *DepTree) {
	if fresh == nil {
		fresh = NewDepTree()
	}
	prev := o.Deps()

	r.mu.Lock()
	for _, d := range prev.Deps() {
		if _, still := fresh.Contains(d.Path); !still {
			r.dropReader(d.Path.String(), o.id)
		}
	}
	for _, d := range fresh.Deps() {
		key := d.Path.String()
		set, ok := r.readers[key]
		if !ok {
			set = make(map[string]struct{})
			r.readers[key] = set
		}
		set[o.id] = struct{}{}
	}
	r.mu.Unlock()

	o.setDeps(fresh)
}

// dropReader removes one observer from a read-index entry.
// Caller holds r.mu.
func (r *Registry) dropReader(key, oid string) {
	set, ok := r.readers[key]
	if !ok {
		return
	}
	delete(set, oid)
	if len(set) == 0 {
		delete(r.readers, key)
	}
}

// ReadersOf returns the IDs of observers with an exact dependency on
// the given path, sorted. Intended for introspection and tests.
func (r *Registry) ReadersOf(p path.Path) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.readers[p.String()]
	out := make([]string, 0, len(set))
	for oid := range set {
		out = append(out, oid)
	}
	sort.Strings(out)
	return out
}

// Match returns the observers whose dependency trees intersect any of
// the mutated paths, in registration order, each at most once.
func (r *Registry) Match(mutated []path.Path) []*Observer {
	r.mu.RLock()
	order := make([]string, len(r.order))
	copy(order, r.order)
	obs := make(map[string]*Observer, len(r.observers))
	for oid, o := range r.observers {
		obs[oid] = o
	}
	r.mu.RUnlock()

	var matched []*Observer
	for _, oid := range order {
		o := obs[oid]
		if o == nil {
			continue
		}
		if o.Deps().MatchesAny(mutated) {
			matched = append(matched, o)
		}
	}
	return matched
}

// Len returns the number of live observers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}
