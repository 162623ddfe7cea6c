package metrics

import "net/http"

// fanoutBuckets bound the observers-notified-per-flush distribution.
var fanoutBuckets = []float64{0, 1, 2, 5, 10, 25, 50, 100}

// StoreMetrics is the instrument set for one store. All instruments
// live in the registry returned by Registry, ready for exposition.
type StoreMetrics struct {
	registry *Registry

	// OperationsTotal counts completed operations.
	// Labels: operation, status (ok, error)
	OperationsTotal *Counter

	// MutationsTotal counts recorded mutations.
	// Labels: type (set, delete, splice, method-call)
	MutationsTotal *Counter

	// FlushesTotal counts batch flushes.
	FlushesTotal *Counter

	// FlushFanout tracks how many observers each flush notified.
	FlushFanout *Histogram

	// Observers gauges the number of subscribed observers, derived
	// entries included.
	Observers *Gauge

	// DerivedRecomputesTotal counts derived value recomputations.
	// Labels: derived
	DerivedRecomputesTotal *Counter
}

// NewStoreMetrics creates a store instrument set backed by a fresh
// registry.
func NewStoreMetrics() *StoreMetrics {
	r := NewRegistry()
	return &StoreMetrics{
		registry: r,
		OperationsTotal: r.NewCounter(
			"grove_operations_total",
			"Completed operations by name and status",
			"operation", "status",
		),
		MutationsTotal: r.NewCounter(
			"grove_mutations_total",
			"Recorded state mutations by type",
			"type",
		),
		FlushesTotal: r.NewCounter(
			"grove_flushes_total",
			"Batch flushes delivered to observers",
		),
		FlushFanout: r.NewHistogram(
			"grove_flush_fanout",
			"Observers notified per flush",
			fanoutBuckets,
		),
		Observers: r.NewGauge(
			"grove_observers",
			"Subscribed observers, derived entries included",
		),
		DerivedRecomputesTotal: r.NewCounter(
			"grove_derived_recomputes_total",
			"Derived value recomputations by entry",
			"derived",
		),
	}
}

// Registry returns the backing registry.
func (m *StoreMetrics) Registry() *Registry { return m.registry }

// Handler serves the instrument set in Prometheus text format.
func (m *StoreMetrics) Handler() http.Handler { return m.registry.Handler() }
