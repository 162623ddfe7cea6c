package async

import (
	"context"
	"errors"
	"sync"
)

// Thenable is any value representing work that settles later. The
// operation runner treats a Thenable result as "still running" and
// defers batch flushing until the callback fires.
type Thenable interface {
	// Then registers a continuation invoked exactly once when the work
	// settles, with the result or the failure.
	Then(fn func(v any, err error))
}

// ErrAlreadySettled is returned when resolving or rejecting a future a
// second time.
var ErrAlreadySettled = errors.New("future already settled")

// Future is a single-assignment result container. The zero value is not
// usable; create one with NewFuture.
type Future struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   any
	err     error
	waiters []func(v any, err error)
}

// NewFuture creates an unsettled future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the future with a value and runs the registered
// continuations.
func (f *Future) Resolve(v any) error { return f.settle(v, nil) }

// Reject settles the future with an error and runs the registered
// continuations.
func (f *Future) Reject(err error) error { return f.settle(nil, err) }

func (f *Future) settle(v any, err error) error {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return ErrAlreadySettled
	}
	f.settled = true
	f.value = v
	f.err = err
	waiters := f.waiters
	f.waiters = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range waiters {
		fn(v, err)
	}
	return nil
}

// Then registers a continuation. If the future is already settled the
// continuation runs immediately on the calling goroutine.
func (f *Future) Then(fn func(v any, err error)) {
	f.mu.Lock()
	if f.settled {
		v, err := f.value, f.err
		f.mu.Unlock()
		fn(v, err)
		return
	}
	f.waiters = append(f.waiters, fn)
	f.mu.Unlock()
}

// Settled reports whether the future has been resolved or rejected.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Await blocks until the future settles or the context is done.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Go runs fn on a new goroutine and returns a future settled with its
// result.
func Go(fn func() (any, error)) *Future {
	f := NewFuture()
	go func() {
		v, err := fn()
		if err != nil {
			_ = f.Reject(err)
			return
		}
		_ = f.Resolve(v)
	}()
	return f
}
