package action

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getgrove/grove/pkg/async"
	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/logging"
	"github.com/getgrove/grove/pkg/track"
)

// Func is an operation implementation. Returning an async.Thenable
// signals that the operation continues past a suspension point; the
// runner defers the batch flush until it settles.
type Func func(c *Context, payload any) (any, error)

// Context is what an operation sees while running.
type Context struct {
	// State is the tracked state root.
	State *track.Object
	// Effects holds the side-effect handles configured on the store.
	// Operations reach the outside world through it rather than
	// importing clients directly.
	Effects any

	ctx    context.Context
	runner *Runner
	scope  *batch.Scope
}

// Context returns the cancellation context the operation was started
// with.
func (c *Context) Context() context.Context { return c.ctx }

// Run invokes another operation by name. The nested operation shares
// the caller's batch scope: its mutations flush together with the
// caller's, once, when the outermost operation completes. Scope
// membership follows this call path, not the tree, so an unrelated
// operation running concurrently keeps its own batch.
func (c *Context) Run(name string, payload any) (any, error) {
	r := c.runner
	r.mu.RLock()
	fn, ok := r.ops[name]
	hooks := r.hooks
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownOperationError{Name: name}
	}
	return r.run(c.ctx, name, fn, payload, hooks, c.scope)
}

// Go runs fn on a new goroutine as this operation's continuation: its
// mutations bind to the operation's batch scope, and the returned
// future's settlement releases the scope when the runner is waiting on
// it. Continuations that mutate state must go through Go (or a fresh
// Run); a bare goroutine has no scope entered and its writes fail with
// MutationOutsideActionError.
func (c *Context) Go(fn func() (any, error)) *async.Future {
	scope := c.scope
	tree := c.runner.tree
	return async.Go(func() (any, error) {
		tree.PushScope(scope)
		defer tree.PopScope(scope)
		return fn()
	})
}

// UnknownOperationError is returned when running an operation name the
// runner has no registration for.
type UnknownOperationError struct {
	Name string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Name)
}

// Hooks receives operation lifecycle notifications, feeding the
// inspector. Nil callbacks are skipped.
type Hooks struct {
	OnStart func(name string)
	OnEnd   func(name string, err error)
}

// Runner executes registered operations against one tree.
type Runner struct {
	tree    *track.Tree
	flusher batch.Flusher
	log     *slog.Logger

	mu      sync.RWMutex
	effects any
	ops     map[string]Func
	hooks   Hooks
}

// NewRunner creates a runner. Batches opened for top-level operations
// flush through the given flusher. A nil logger disables logging.
func NewRunner(tree *track.Tree, flusher batch.Flusher, effects any, log *slog.Logger) *Runner {
	if log == nil {
		log = logging.Nop()
	}
	return &Runner{
		tree:    tree,
		flusher: flusher,
		effects: effects,
		log:     log,
		ops:     make(map[string]Func),
	}
}

// Effects returns the current effect handles.
func (r *Runner) Effects() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.effects
}

// SetEffects replaces the effect handles. Used when mounting namespaces
// after construction; operations started afterwards see the new value.
func (r *Runner) SetEffects(effects any) {
	r.mu.Lock()
	r.effects = effects
	r.mu.Unlock()
}

// Register adds a named operation, replacing any previous registration
// under the same name.
func (r *Runner) Register(name string, fn Func) {
	r.mu.Lock()
	r.ops[name] = fn
	r.mu.Unlock()
}

// SetHooks installs the lifecycle hooks. Must be set before operations
// run.
func (r *Runner) SetHooks(h Hooks) {
	r.mu.Lock()
	r.hooks = h
	r.mu.Unlock()
}

// Names returns the registered operation names.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	return names
}

// Run executes the named operation as a top-level invocation: it opens
// its own batch scope and flushes it when the operation (and any
// thenable it returned) finishes. Operations started while another is
// suspended at an await get independent scopes and flush independently;
// only calls made through Context.Run join an existing batch. The
// operation's error is returned as-is.
func (r *Runner) Run(ctx context.Context, name string, payload any) (any, error) {
	r.mu.RLock()
	fn, ok := r.ops[name]
	hooks := r.hooks
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownOperationError{Name: name}
	}
	return r.run(ctx, name, fn, payload, hooks, nil)
}

// RunFunc executes an unregistered operation function under the same
// batching rules as Run.
func (r *Runner) RunFunc(ctx context.Context, name string, fn Func, payload any) (any, error) {
	r.mu.RLock()
	hooks := r.hooks
	r.mu.RUnlock()
	return r.run(ctx, name, fn, payload, hooks, nil)
}

// run executes fn with its batch scope entered for the synchronous
// segment. A nil parent means top-level: a fresh scope is created and
// released when the operation settles. A non-nil parent is the calling
// operation's scope, retained for the nested call.
func (r *Runner) run(ctx context.Context, name string, fn Func, payload any, hooks Hooks, parent *batch.Scope) (any, error) {
	top := parent == nil
	s := parent
	if top {
		s = batch.NewScope(r.flusher)
	} else {
		s.Retain()
	}

	if hooks.OnStart != nil {
		hooks.OnStart(name)
	}
	r.log.Debug("operation started", "operation", name, "batch", s.ID(), "nested", !top)

	finish := func(err error) {
		if hooks.OnEnd != nil {
			hooks.OnEnd(name, err)
		}
		if err != nil {
			r.log.Debug("operation failed", "operation", name, "batch", s.ID(), "error", err)
		} else {
			r.log.Debug("operation finished", "operation", name, "batch", s.ID())
		}
		s.Release()
	}

	c := &Context{State: r.tree.Root(), Effects: r.Effects(), ctx: ctx, runner: r, scope: s}
	r.tree.PushScope(s)
	result, err := fn(c, payload)
	r.tree.PopScope(s)

	if th, ok := result.(async.Thenable); ok && err == nil {
		// The operation suspended. The scope stays retained so the
		// continuation's mutations (made under Context.Go) join the
		// batch; the flush waits for settlement.
		th.Then(func(_ any, terr error) { finish(terr) })
		return result, nil
	}

	finish(err)
	return result, err
}
