package inspect

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getgrove/grove/internal/id"
	"github.com/getgrove/grove/pkg/logging"
)

// Kind identifies the type of a feed event.
type Kind string

// Feed event kinds.
const (
	KindOperationStart Kind = "operation-start"
	KindOperationEnd   Kind = "operation-end"
	KindMutation       Kind = "mutation"
	KindFlush          Kind = "flush"
	KindDerive         Kind = "derive"
)

// Event is one entry in the inspection feed.
type Event struct {
	// Seq is a monotonically increasing sequence number per feed.
	Seq uint64 `json:"seq"`
	// Time is when the event was emitted.
	Time time.Time `json:"time"`
	// Kind is the event type.
	Kind Kind `json:"kind"`

	// Operation is the operation name for operation-start/end events.
	Operation string `json:"operation,omitempty"`
	// Error carries the failure message of a failed operation.
	Error string `json:"error,omitempty"`

	// Path is the canonical address of a mutation or derive event.
	Path string `json:"path,omitempty"`
	// Mutation is the mutation type (set, delete, splice, method-call).
	Mutation string `json:"mutation,omitempty"`
	// Previous and Value carry the before/after values of a mutation.
	Previous any `json:"previous,omitempty"`
	Value    any `json:"value,omitempty"`

	// Paths lists the distinct mutated addresses of a flush.
	Paths []string `json:"paths,omitempty"`
	// Notified is the number of observers notified by a flush.
	Notified int `json:"notified,omitempty"`

	// Derived is the derived entry name for derive events.
	Derived string `json:"derived,omitempty"`

	// globs holds the slash form of the event's path(s) for pattern
	// matching; not serialized.
	globs []string
}

// WithGlobs attaches the slash-form paths used for subscription
// pattern matching and returns the event.
func (e Event) WithGlobs(globs ...string) Event {
	e.globs = globs
	return e
}

// defaultSubscriptionBuffer is the per-subscription channel capacity.
// Slow consumers drop events rather than stalling the store.
const defaultSubscriptionBuffer = 256

// Subscription is one feed listener.
type Subscription struct {
	id      string
	pattern string
	ch      chan Event
	dropped atomic.Uint64
	closed  atomic.Bool
}

// ID returns the subscription's identifier.
func (s *Subscription) ID() string { return s.id }

// Pattern returns the doublestar filter, "" when unfiltered.
func (s *Subscription) Pattern() string { return s.pattern }

// Events returns the channel feed events are delivered on. The channel
// is closed when the subscription is cancelled or the feed shuts down.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped returns how many events were discarded because the consumer
// fell behind.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// wants reports whether the event passes the subscription's filter.
// Events with no path (operation/flush frames) always pass so tools
// keep their timeline even when filtering mutations.
func (s *Subscription) wants(ev Event) bool {
	if s.pattern == "" || len(ev.globs) == 0 {
		return true
	}
	for _, g := range ev.globs {
		if ok, _ := doublestar.Match(s.pattern, g); ok {
			return true
		}
	}
	return false
}

// Feed is the fan-out hub for inspection events.
type Feed struct {
	log *slog.Logger
	seq atomic.Uint64

	mu     sync.RWMutex
	subs   map[string]*Subscription
	ring   []Event
	next   int
	filled bool
	closed bool
}

// NewFeed creates a feed retaining the most recent historySize events
// (0 disables history). A nil logger disables logging.
func NewFeed(historySize int, log *slog.Logger) *Feed {
	if log == nil {
		log = logging.Nop()
	}
	f := &Feed{
		log:  log,
		subs: make(map[string]*Subscription),
	}
	if historySize > 0 {
		f.ring = make([]Event, historySize)
	}
	return f
}

// Emit assigns the event its sequence number and timestamp, records it
// in the history ring, and fans it out to matching subscribers without
// blocking: a subscriber with a full buffer loses the event.
func (f *Feed) Emit(ev Event) {
	ev.Seq = f.seq.Add(1)
	ev.Time = time.Now()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.ring != nil {
		f.ring[f.next] = ev
		f.next = (f.next + 1) % len(f.ring)
		if f.next == 0 {
			f.filled = true
		}
	}
	subs := make([]*Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		if !s.wants(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
		}
	}
}

// Subscribe registers a listener. The pattern is a doublestar glob
// matched against the slash form of event paths; "" subscribes to
// everything.
func (f *Feed) Subscribe(pattern string) (*Subscription, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid subscription pattern %q", pattern)
	}

	sub := &Subscription{
		id:      id.Short(),
		pattern: pattern,
		ch:      make(chan Event, defaultSubscriptionBuffer),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(sub.ch)
		sub.closed.Store(true)
		return nil, fmt.Errorf("feed is closed")
	}
	f.subs[sub.id] = sub
	f.mu.Unlock()

	f.log.Debug("inspector subscribed", "subscription", sub.id, "pattern", pattern)
	return sub, nil
}

// Unsubscribe cancels a subscription and closes its channel.
func (f *Feed) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	f.mu.Lock()
	_, ok := f.subs[sub.id]
	delete(f.subs, sub.id)
	f.mu.Unlock()

	if ok && sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
	}
}

// History returns the retained events, oldest first.
func (f *Feed) History() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.ring == nil {
		return nil
	}
	var out []Event
	if f.filled {
		out = append(out, f.ring[f.next:]...)
	}
	out = append(out, f.ring[:f.next]...)
	return out
}

// SubscriberCount returns the number of live subscriptions.
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Close shuts the feed down, closing every subscription channel.
// Emissions after Close are discarded.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := f.subs
	f.subs = make(map[string]*Subscription)
	f.mu.Unlock()

	for _, s := range subs {
		if s.closed.CompareAndSwap(false, true) {
			close(s.ch)
		}
	}
}
