package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/getgrove/grove/pkg/action"
	"github.com/getgrove/grove/pkg/batch"
	"github.com/getgrove/grove/pkg/codec"
	"github.com/getgrove/grove/pkg/derive"
	"github.com/getgrove/grove/pkg/inspect"
	"github.com/getgrove/grove/pkg/logging"
	"github.com/getgrove/grove/pkg/machine"
	"github.com/getgrove/grove/pkg/metrics"
	"github.com/getgrove/grove/pkg/observe"
	"github.com/getgrove/grove/pkg/path"
	"github.com/getgrove/grove/pkg/track"
)

// Config declares a store.
type Config struct {
	// State is the initial state tree.
	State map[string]any
	// Actions maps operation names to their implementations.
	Actions map[string]action.Func
	// Effects is handed to every operation untouched; put side-effect
	// clients here.
	Effects any
	// Derived maps derived value names to their compute functions.
	Derived map[string]derive.Func
	// Strict rejects writes outside transition-machine sends.
	Strict bool
}

// Option adjusts store construction.
type Option func(*options)

type options struct {
	log         *slog.Logger
	feedHistory int
	mutationLog bool
	metrics     *metrics.StoreMetrics
}

// WithLogger sets the store's logger. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithFeedHistory sets how many inspection events the feed retains for
// late subscribers. The default is 512; 0 disables history.
func WithFeedHistory(n int) Option {
	return func(o *options) { o.feedHistory = n }
}

// WithMutationLog records every mutation in a replayable log,
// retrievable with MutationLog.
func WithMutationLog() Option {
	return func(o *options) { o.mutationLog = true }
}

// WithMetrics attaches an instrument set the store updates from its
// hooks. Retrieve it with Metrics for exposition.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(o *options) { o.metrics = m }
}

const defaultFeedHistory = 512

// Store is an assembled reactive state store.
type Store struct {
	log        *slog.Logger
	registry   *observe.Registry
	collector  *observe.Collector
	tree       *track.Tree
	notifier   *batch.Notifier
	runner     *action.Runner
	derived    *derive.Cache
	feed       *inspect.Feed
	rehydrator *codec.Rehydrator
	mutLog     *codec.Log
	schema     *codec.SchemaValidator
	metrics    *metrics.StoreMetrics

	lazyMu sync.Mutex
	lazy   map[string]Loader
}

// Loader produces a namespace configuration on demand.
type Loader func() (Config, error)

// New builds a store from its configuration.
func New(cfg Config, opts ...Option) (*Store, error) {
	o := options{feedHistory: defaultFeedHistory}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log
	if log == nil {
		log = logging.Nop()
	}

	registry := observe.NewRegistry(log)
	collector := observe.NewCollector(registry)
	tree := track.NewTree(collector, log)
	if err := tree.Load(cfg.State); err != nil {
		return nil, fmt.Errorf("load initial state: %w", err)
	}
	tree.SetStrict(cfg.Strict)

	s := &Store{
		log:        log,
		registry:   registry,
		collector:  collector,
		tree:       tree,
		notifier:   batch.NewNotifier(registry, log),
		feed:       inspect.NewFeed(o.feedHistory, log),
		rehydrator: codec.NewRehydrator(),
		lazy:       make(map[string]Loader),
	}
	if o.mutationLog {
		s.mutLog = codec.NewLog(tree)
	}
	s.metrics = o.metrics

	tree.SetEventHook(s.onMutation)
	s.notifier.SetFlushHook(s.onFlush)

	s.runner = action.NewRunner(tree, s.notifier, cfg.Effects, log)
	s.runner.SetHooks(action.Hooks{
		OnStart: func(name string) {
			s.feed.Emit(inspect.Event{Kind: inspect.KindOperationStart, Operation: name})
		},
		OnEnd: func(name string, err error) {
			ev := inspect.Event{Kind: inspect.KindOperationEnd, Operation: name}
			status := "ok"
			if err != nil {
				ev.Error = err.Error()
				status = "error"
			}
			s.feed.Emit(ev)
			if s.metrics != nil {
				_ = s.metrics.OperationsTotal.Inc(name, status)
			}
		},
	})
	for name, fn := range cfg.Actions {
		s.runner.Register(name, fn)
	}

	s.derived = derive.NewCache(tree, registry, collector, log)
	s.derived.SetDeriveHook(func(name string) {
		s.feed.Emit(inspect.Event{Kind: inspect.KindDerive, Derived: name})
		if s.metrics != nil {
			_ = s.metrics.DerivedRecomputesTotal.Inc(name)
		}
	})
	for name, fn := range cfg.Derived {
		if _, err := s.derived.Register(name, fn); err != nil {
			return nil, err
		}
	}

	log.Info("store ready",
		"operations", len(cfg.Actions),
		"derived", len(cfg.Derived),
		"strict", cfg.Strict)
	return s, nil
}

func (s *Store) onMutation(ev batch.Event) {
	if s.mutLog != nil {
		s.mutLog.Append(ev)
	}
	if s.metrics != nil {
		_ = s.metrics.MutationsTotal.Inc(string(ev.Type))
	}
	s.feed.Emit(inspect.Event{
		Kind:     inspect.KindMutation,
		Path:     ev.Path.String(),
		Mutation: string(ev.Type),
		Previous: track.Plain(ev.Previous),
		Value:    track.Plain(ev.Value),
	}.WithGlobs(ev.Path.SlashString()))
}

func (s *Store) onFlush(mutated []path.Path, notified int) {
	paths := make([]string, len(mutated))
	globs := make([]string, len(mutated))
	for i, p := range mutated {
		paths[i] = p.String()
		globs[i] = p.SlashString()
	}
	s.feed.Emit(inspect.Event{
		Kind:     inspect.KindFlush,
		Paths:    paths,
		Notified: notified,
	}.WithGlobs(globs...))
	if s.metrics != nil {
		_ = s.metrics.FlushesTotal.Inc()
		_ = s.metrics.FlushFanout.Observe(float64(notified))
		_ = s.metrics.Observers.Set(float64(s.registry.Len()))
	}
}

// State returns the tracked state root.
func (s *Store) State() *track.Object { return s.tree.Root() }

// Tree returns the underlying tracked tree.
func (s *Store) Tree() *track.Tree { return s.tree }

// Run executes a registered operation. An unknown name with a
// namespace prefix triggers that namespace's lazy loader, if one is
// registered, before retrying.
func (s *Store) Run(ctx context.Context, name string, payload any) (any, error) {
	v, err := s.runner.Run(ctx, name, payload)
	var uerr *action.UnknownOperationError
	if !errors.As(err, &uerr) {
		return v, err
	}

	ns, _, found := strings.Cut(name, ".")
	if !found {
		return v, err
	}
	if lerr := s.mountLazy(ctx, ns); lerr != nil {
		if errors.Is(lerr, errNoLoader) {
			return v, err
		}
		return nil, lerr
	}
	return s.runner.Run(ctx, name, payload)
}

var errNoLoader = errors.New("no lazy loader")

func (s *Store) mountLazy(ctx context.Context, ns string) error {
	s.lazyMu.Lock()
	loader, ok := s.lazy[ns]
	if ok {
		delete(s.lazy, ns)
	}
	s.lazyMu.Unlock()
	if !ok {
		return errNoLoader
	}

	cfg, err := loader()
	if err != nil {
		return fmt.Errorf("load namespace %q: %w", ns, err)
	}
	return s.Mount(ctx, ns, cfg)
}

// MountLazy registers a namespace to be mounted on first use: the
// first Run of an operation named "<name>.<op>" invokes the loader and
// mounts the configuration it returns.
func (s *Store) MountLazy(name string, loader Loader) {
	s.lazyMu.Lock()
	s.lazy[name] = loader
	s.lazyMu.Unlock()
}

// Mount adds a namespace at runtime. Its state is installed under the
// namespace key in one operation, its operations register as
// "<name>.<op>" and run against the namespace's state subtree, and its
// derived values register as "<name>.<key>". The namespace's effects
// replace c.Effects for its own operations.
func (s *Store) Mount(ctx context.Context, name string, cfg Config) error {
	if _, err := s.runner.RunFunc(ctx, "mount:"+name, func(c *action.Context, _ any) (any, error) {
		return nil, c.State.Set(name, cfg.State)
	}, nil); err != nil {
		return fmt.Errorf("mount namespace %q: %w", name, err)
	}

	for op, fn := range cfg.Actions {
		inner := fn
		effects := cfg.Effects
		s.runner.Register(name+"."+op, func(c *action.Context, payload any) (any, error) {
			sub := c.State.Object(name)
			if sub == nil {
				return nil, fmt.Errorf("namespace %q state is missing", name)
			}
			c.State = sub
			if effects != nil {
				c.Effects = effects
			}
			return inner(c, payload)
		})
	}

	for key, fn := range cfg.Derived {
		inner := fn
		if _, err := s.derived.Register(name+"."+key, func(root *track.Object) (any, error) {
			sub := root.Object(name)
			if sub == nil {
				return nil, fmt.Errorf("namespace %q state is missing", name)
			}
			return inner(sub)
		}); err != nil {
			return err
		}
	}

	s.log.Info("namespace mounted", "namespace", name,
		"operations", len(cfg.Actions), "derived", len(cfg.Derived))
	return nil
}

// RunFunc executes an ad-hoc operation under the store's batching
// rules.
func (s *Store) RunFunc(ctx context.Context, name string, fn action.Func, payload any) (any, error) {
	return s.runner.RunFunc(ctx, name, fn, payload)
}

// Operations returns the registered operation names.
func (s *Store) Operations() []string { return s.runner.Names() }

// DerivedNames returns the registered derived value names.
func (s *Store) DerivedNames() []string { return s.derived.Names() }

// Observers returns the number of subscribed observers, derived
// entries included.
func (s *Store) Observers() int { return s.registry.Len() }

// Subscribe registers an observer. It is notified after every batch
// flush that touched state it read during its last Collect.
func (s *Store) Subscribe(name string, notify func()) *observe.Observer {
	return s.registry.Subscribe(name, notify)
}

// Unsubscribe removes an observer.
func (s *Store) Unsubscribe(o *observe.Observer) {
	s.registry.Unsubscribe(o)
}

// Collect runs read under dependency collection for the observer,
// replacing its dependency set with the state the read touched.
func (s *Store) Collect(o *observe.Observer, read func() error) error {
	if err := s.collector.Start(o); err != nil {
		return err
	}
	rerr := read()
	if _, err := s.collector.Stop(); err != nil {
		return err
	}
	return rerr
}

// Derived returns the value of a registered derived entry, recomputing
// if state it depends on changed since the last read.
func (s *Store) Derived(name string) (any, error) {
	return s.derived.Value(name)
}

// DerivedCache exposes the derived-value cache for registration beyond
// the constructor config (expression entries in particular).
func (s *Store) DerivedCache() *derive.Cache { return s.derived }

// Machine binds a transition machine to a tracked object in this
// store's tree.
func (s *Store) Machine(target *track.Object, spec machine.Spec) (*machine.Machine, error) {
	return machine.New(s.tree, target, spec, s.log)
}

// RegisterModel registers a model factory for rehydration, reviving
// models of the given shape at the given path.
func (s *Store) RegisterModel(at string, shape codec.Shape, factory codec.Factory) error {
	return s.rehydrator.RegisterModel(at, shape, factory)
}

// SetSnapshotSchema installs a JSON Schema that Rehydrate validates
// snapshots against before applying them.
func (s *Store) SetSnapshotSchema(schema map[string]any) {
	s.schema = codec.NewSchemaValidator(schema)
}

// Snapshot serializes the current state to plain data.
func (s *Store) Snapshot() (map[string]any, error) {
	return codec.Snapshot(s.tree.Root())
}

// Rehydrate applies a snapshot onto the state inside one operation, so
// observers of the replaced state are notified in a single flush. With
// a snapshot schema installed the data is validated first.
func (s *Store) Rehydrate(ctx context.Context, snapshot map[string]any) error {
	if s.schema != nil {
		if err := s.schema.Validate(snapshot); err != nil {
			return err
		}
	}
	_, err := s.runner.RunFunc(ctx, "rehydrate", func(c *action.Context, _ any) (any, error) {
		return nil, s.rehydrator.Apply(c.State, snapshot)
	}, nil)
	return err
}

// Replay applies a recorded mutation log inside one operation.
func (s *Store) Replay(ctx context.Context, entries []codec.LogEntry) error {
	_, err := s.runner.RunFunc(ctx, "replay", func(c *action.Context, _ any) (any, error) {
		return nil, codec.Replay(c.State, entries)
	}, nil)
	return err
}

// Feed returns the inspection event feed.
func (s *Store) Feed() *inspect.Feed { return s.feed }

// MutationLog returns the replayable mutation log, or nil unless the
// store was built with WithMutationLog.
func (s *Store) MutationLog() *codec.Log { return s.mutLog }

// Metrics returns the attached instrument set, or nil unless the store
// was built with WithMetrics.
func (s *Store) Metrics() *metrics.StoreMetrics { return s.metrics }

// Close shuts down the feed and the derived entries' observers. The
// state itself needs no teardown.
func (s *Store) Close() {
	s.feed.Close()
	s.derived.Close()
	s.log.Info("store closed")
}
