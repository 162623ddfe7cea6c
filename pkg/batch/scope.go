package batch

import (
	"sync"

	"github.com/getgrove/grove/internal/id"
)

// Flusher receives the accumulated events of a scope exactly once, when
// the scope's reference count returns to zero.
type Flusher interface {
	Flush(events []Event)
}

// FlusherFunc adapts a function to the Flusher interface.
type FlusherFunc func(events []Event)

// Flush calls f.
func (f FlusherFunc) Flush(events []Event) { f(events) }

// Scope is one open batch: the ordered mutation events of a logical
// operation plus a reference count of its in-flight continuations.
// Nested operations share their parent's scope; asynchronous
// continuations retain it across the gap so await-separated mutations
// still coalesce into one flush.
type Scope struct {
	id      string
	flusher Flusher

	mu      sync.Mutex
	events  []Event
	refs    int
	flushed bool
}

// NewScope creates a scope with a reference count of one, held by the
// opener. The flusher may be nil, in which case flushing only discards
// the events.
func NewScope(flusher Flusher) *Scope {
	return &Scope{
		id:      id.UUID(),
		flusher: flusher,
		refs:    1,
	}
}

// ID returns the scope's unique identifier, used in inspector events.
func (s *Scope) ID() string { return s.id }

// Retain increments the reference count. Each continuation that may
// still mutate state holds one reference.
func (s *Scope) Retain() {
	s.mu.Lock()
	if !s.flushed {
		s.refs++
	}
	s.mu.Unlock()
}

// Release decrements the reference count. When it returns to zero the
// scope flushes exactly once; further releases are no-ops.
func (s *Scope) Release() {
	s.mu.Lock()
	if s.flushed {
		s.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return
	}
	s.flushed = true
	events := s.events
	s.events = nil
	s.mu.Unlock()

	if s.flusher != nil {
		s.flusher.Flush(events)
	}
}

// Record appends a mutation event to the batch. Recording on a flushed
// scope is a silent no-op; no further continuation legitimately holds
// such a scope.
func (s *Scope) Record(ev Event) {
	s.mu.Lock()
	if !s.flushed {
		s.events = append(s.events, ev)
	}
	s.mu.Unlock()
}

// Events returns a copy of the events recorded so far.
func (s *Scope) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Open reports whether the scope has not flushed yet.
func (s *Scope) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.flushed
}
