package batch

import (
	"log/slog"

	"github.com/getgrove/grove/pkg/logging"
	"github.com/getgrove/grove/pkg/observe"
	"github.com/getgrove/grove/pkg/path"
)

// Notifier turns a flushed batch into observer notifications. It is the
// Flusher wired into every scope a store opens.
type Notifier struct {
	registry *observe.Registry
	log      *slog.Logger

	// onFlush, when set, receives the distinct mutated paths and the
	// number of notified observers after each non-empty flush. The
	// inspector feed hangs off this hook.
	onFlush func(mutated []path.Path, notified int)
}

// NewNotifier creates a notifier delivering to the given registry.
func NewNotifier(registry *observe.Registry, log *slog.Logger) *Notifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Notifier{registry: registry, log: log}
}

// SetFlushHook installs the post-flush callback. Must be set before the
// first scope is opened.
func (n *Notifier) SetFlushHook(fn func(mutated []path.Path, notified int)) {
	n.onFlush = fn
}

// Flush computes the distinct mutated paths and notifies every observer
// whose dependency tree intersects them, exactly once each, in
// registration order. An empty batch notifies nobody.
func (n *Notifier) Flush(events []Event) {
	if len(events) == 0 {
		return
	}

	mutated := DistinctPaths(events)
	matched := n.registry.Match(mutated)

	n.log.Debug("flushing batch",
		"events", len(events),
		"paths", len(mutated),
		"observers", len(matched))

	for _, o := range matched {
		o.Notify()
	}

	if n.onFlush != nil {
		n.onFlush(mutated, len(matched))
	}
}

// DistinctPaths returns the unique mutation targets of a batch in
// first-occurrence order.
func DistinctPaths(events []Event) []path.Path {
	seen := make(map[string]struct{}, len(events))
	out := make([]path.Path, 0, len(events))
	for _, ev := range events {
		key := ev.Path.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev.Path)
	}
	return out
}
