package derive

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getgrove/grove/pkg/logging"
	"github.com/getgrove/grove/pkg/observe"
	"github.com/getgrove/grove/pkg/track"
)

// Func computes a derived value from the state root. Reads it performs
// are collected as the entry's dependencies.
type Func func(root *track.Object) (any, error)

// Entry is one registered derived value.
type Entry struct {
	name    string
	compute Func
	cache   *Cache

	mu       sync.Mutex
	cached   any
	dirty    bool
	computes uint64
	observer *observe.Observer
}

// Name returns the entry's registration name.
func (e *Entry) Name() string { return e.name }

// Computes returns how many times the entry has been recomputed.
func (e *Entry) Computes() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computes
}

// Dirty reports whether the next read will recompute.
func (e *Entry) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// markDirty is the entry observer's flush notification.
func (e *Entry) markDirty() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

// Value returns the derived value, recomputing if a flush invalidated
// the cache since the last read.
//
// When another observer is collecting at read time (a view pulling a
// derived value inside its own collection), the compute runs under that
// collection instead: the reader picks up the underlying state
// dependencies directly, and the entry stays dirty so its own
// dependency set is rebuilt on the next standalone read.
func (e *Entry) Value() (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dirty {
		return e.cached, nil
	}

	c := e.cache
	if c.collector.Collecting() {
		v, err := e.compute(c.tree.Root())
		if err != nil {
			return nil, fmt.Errorf("derive %q: %w", e.name, err)
		}
		e.computes++
		c.emitDerive(e.name)
		return v, nil
	}

	if err := c.collector.Start(e.observer); err != nil {
		return nil, fmt.Errorf("derive %q: %w", e.name, err)
	}
	v, cerr := e.compute(c.tree.Root())
	if _, err := c.collector.Stop(); err != nil {
		return nil, fmt.Errorf("derive %q: %w", e.name, err)
	}
	if cerr != nil {
		return nil, fmt.Errorf("derive %q: %w", e.name, cerr)
	}

	e.cached = v
	e.dirty = false
	e.computes++
	c.emitDerive(e.name)
	c.log.Debug("derived value recomputed", "derived", e.name, "computes", e.computes)
	return v, nil
}

// Cache holds the derived entries of one store.
type Cache struct {
	tree      *track.Tree
	registry  *observe.Registry
	collector *observe.Collector
	log       *slog.Logger

	mu       sync.RWMutex
	entries  map[string]*Entry
	onDerive func(name string)
}

// NewCache creates an empty cache bound to a tree and its observer
// registry. A nil logger disables logging.
func NewCache(tree *track.Tree, registry *observe.Registry, collector *observe.Collector, log *slog.Logger) *Cache {
	if log == nil {
		log = logging.Nop()
	}
	return &Cache{
		tree:      tree,
		registry:  registry,
		collector: collector,
		log:       log,
		entries:   make(map[string]*Entry),
	}
}

// SetDeriveHook installs the callback invoked on every recompute,
// feeding the inspector. Must be set before entries are read.
func (c *Cache) SetDeriveHook(fn func(name string)) {
	c.mu.Lock()
	c.onDerive = fn
	c.mu.Unlock()
}

func (c *Cache) emitDerive(name string) {
	c.mu.RLock()
	fn := c.onDerive
	c.mu.RUnlock()
	if fn != nil {
		fn(name)
	}
}

// Register adds a derived entry. The entry starts dirty; nothing is
// computed until the first read.
func (c *Cache) Register(name string, fn Func) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; exists {
		return nil, fmt.Errorf("derived value %q already registered", name)
	}
	e := &Entry{name: name, compute: fn, cache: c, dirty: true}
	e.observer = c.registry.Subscribe("derived:"+name, e.markDirty)
	c.entries[name] = e
	return e, nil
}

// Entry returns a registered entry by name.
func (c *Cache) Entry(name string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	return e, ok
}

// Value computes or returns the cached value of the named entry.
func (c *Cache) Value(name string) (any, error) {
	e, ok := c.Entry(name)
	if !ok {
		return nil, fmt.Errorf("unknown derived value %q", name)
	}
	return e.Value()
}

// Names returns the registered entry names.
func (c *Cache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	return names
}

// Close unsubscribes every entry's observer.
func (c *Cache) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	for _, e := range entries {
		c.registry.Unsubscribe(e.observer)
	}
}
