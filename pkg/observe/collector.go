package observe

import (
	"errors"
	"sync"

	"github.com/getgrove/grove/pkg/path"
)

// Collector errors.
var (
	// ErrAlreadyCollecting is returned by Start when a collection is
	// already open; collections do not nest.
	ErrAlreadyCollecting = errors.New("a dependency collection is already open")

	// ErrNotCollecting is returned by Stop without a matching Start.
	// Stopping twice is an error, not a double-deregistration.
	ErrNotCollecting = errors.New("no dependency collection is open")
)

// Collector attributes tracked reads to the observer currently being
// evaluated. One collector serves one store; at most one observer
// collects at a time, consistent with the single-logical-thread
// evaluation model.
type Collector struct {
	registry *Registry

	mu     sync.Mutex
	active *Observer
	fresh  *DepTree
}

// NewCollector creates a collector that reconciles captured dependency
// trees into the given registry.
func NewCollector(registry *Registry) *Collector {
	return &Collector{registry: registry}
}

// Start opens a collection for the observer. Every tracked read until
// Stop is recorded as one of its dependencies.
func (c *Collector) Start(o *Observer) error {
	if o == nil {
		return errors.New("observer must not be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return ErrAlreadyCollecting
	}
	c.active = o
	c.fresh = NewDepTree()
	return nil
}

// Stop closes the open collection, reconciles the observer's
// registrations against the freshly captured tree, and returns the
// captured tree.
func (c *Collector) Stop() (*DepTree, error) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return nil, ErrNotCollecting
	}
	o := c.active
	fresh := c.fresh
	c.active = nil
	c.fresh = nil
	c.mu.Unlock()

	c.registry.SetDeps(o, fresh)
	return fresh, nil
}

// Record attributes a read at p to the currently collecting observer.
// A no-op when no collection is open; unobserved reads cost one mutex
// acquisition and nothing else.
func (c *Collector) Record(p path.Path, nested bool) {
	c.mu.Lock()
	if c.fresh != nil {
		c.fresh.Add(p, nested)
	}
	c.mu.Unlock()
}

// Collecting reports whether a collection is currently open.
func (c *Collector) Collecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}
