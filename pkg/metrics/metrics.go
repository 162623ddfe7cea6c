package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values
// does not match the metric's declared labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrNegativeCounterValue is returned when decreasing a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric under a
// name that is already taken.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// atomicFloat64 stores a float64 as uint64 bits for atomic access.
type atomicFloat64 struct {
	bits uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.bits))
}

func (a *atomicFloat64) Store(v float64) {
	atomic.StoreUint64(&a.bits, math.Float64bits(v))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&a.bits)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&a.bits, old, math.Float64bits(next)) {
			return
		}
	}
}

// Type identifies a metric kind in exposition output.
type Type string

const (
	TypeCounter   Type = "counter"
	TypeGauge     Type = "gauge"
	TypeHistogram Type = "histogram"
)

// Sample is one exposed value with its resolved labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Metric is implemented by all metric kinds.
type Metric interface {
	Name() string
	Help() string
	Type() Type
	Collect() []Sample
}

// series is one label combination's value cell.
type series struct {
	labels map[string]string
	value  atomicFloat64
}

// base carries the name, help text, and labeled series shared by
// counters and gauges.
type base struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	series     map[string]*series
}

func newBase(name, help string, labelNames []string) base {
	return base{
		name:       name,
		help:       help,
		labelNames: labelNames,
		series:     make(map[string]*series),
	}
}

func (b *base) Name() string { return b.name }
func (b *base) Help() string { return b.help }

// at returns the series for the given label values, creating it on
// first use.
func (b *base) at(values []string) (*series, error) {
	if len(values) != len(b.labelNames) {
		return nil, fmt.Errorf("%w: %s expected %d labels, got %d",
			ErrLabelCountMismatch, b.name, len(b.labelNames), len(values))
	}

	key := strings.Join(values, "\x00")
	b.mu.RLock()
	s, ok := b.series[key]
	b.mu.RUnlock()
	if ok {
		return s, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok = b.series[key]; ok {
		return s, nil
	}
	labels := make(map[string]string, len(b.labelNames))
	for i, name := range b.labelNames {
		labels[name] = values[i]
	}
	s = &series{labels: labels}
	b.series[key] = s
	return s, nil
}

func (b *base) collect() []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	samples := make([]Sample, 0, len(b.series))
	for _, s := range b.series {
		samples = append(samples, Sample{Name: b.name, Labels: s.labels, Value: s.value.Load()})
	}
	return samples
}

// Counter is a monotonically increasing metric.
type Counter struct {
	base
}

func (c *Counter) Type() Type        { return TypeCounter }
func (c *Counter) Collect() []Sample { return c.collect() }

// Inc increments the series for the given label values by 1.
func (c *Counter) Inc(labelValues ...string) error {
	return c.Add(1, labelValues...)
}

// Add adds delta, which must not be negative.
func (c *Counter) Add(delta float64, labelValues ...string) error {
	if delta < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeCounterValue, c.name)
	}
	s, err := c.at(labelValues)
	if err != nil {
		return err
	}
	s.value.Add(delta)
	return nil
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	base
}

func (g *Gauge) Type() Type        { return TypeGauge }
func (g *Gauge) Collect() []Sample { return g.collect() }

// Set sets the series for the given label values.
func (g *Gauge) Set(v float64, labelValues ...string) error {
	s, err := g.at(labelValues)
	if err != nil {
		return err
	}
	s.value.Store(v)
	return nil
}

// Add adds delta to the series for the given label values.
func (g *Gauge) Add(delta float64, labelValues ...string) error {
	s, err := g.at(labelValues)
	if err != nil {
		return err
	}
	s.value.Add(delta)
	return nil
}

// Inc increments by 1.
func (g *Gauge) Inc(labelValues ...string) error { return g.Add(1, labelValues...) }

// Dec decrements by 1.
func (g *Gauge) Dec(labelValues ...string) error { return g.Add(-1, labelValues...) }

// Histogram tracks a value distribution in cumulative buckets.
type Histogram struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	series     map[string]*histogramSeries
}

type histogramSeries struct {
	labels map[string]string
	counts []uint64
	sum    atomicFloat64
	count  uint64
}

func newHistogram(name, help string, buckets []float64, labelNames []string) *Histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	return &Histogram{
		name:       name,
		help:       help,
		labelNames: labelNames,
		buckets:    sorted,
		series:     make(map[string]*histogramSeries),
	}
}

func (h *Histogram) Name() string { return h.name }
func (h *Histogram) Help() string { return h.help }
func (h *Histogram) Type() Type   { return TypeHistogram }

// Observe records one value.
func (h *Histogram) Observe(v float64, labelValues ...string) error {
	if len(labelValues) != len(h.labelNames) {
		return fmt.Errorf("%w: %s expected %d labels, got %d",
			ErrLabelCountMismatch, h.name, len(h.labelNames), len(labelValues))
	}

	key := strings.Join(labelValues, "\x00")
	h.mu.RLock()
	s, ok := h.series[key]
	h.mu.RUnlock()
	if !ok {
		h.mu.Lock()
		if s, ok = h.series[key]; !ok {
			labels := make(map[string]string, len(h.labelNames))
			for i, name := range h.labelNames {
				labels[name] = labelValues[i]
			}
			s = &histogramSeries{labels: labels, counts: make([]uint64, len(h.buckets))}
			h.series[key] = s
		}
		h.mu.Unlock()
	}

	for i, bound := range h.buckets {
		if v <= bound {
			atomic.AddUint64(&s.counts[i], 1)
			break
		}
	}
	s.sum.Add(v)
	atomic.AddUint64(&s.count, 1)
	return nil
}

// Collect emits cumulative _bucket samples plus _sum and _count.
func (h *Histogram) Collect() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	samples := make([]Sample, 0, (len(h.buckets)+2)*len(h.series))
	for _, s := range h.series {
		cumulative := uint64(0)
		for i, bound := range h.buckets {
			cumulative += atomic.LoadUint64(&s.counts[i])
			labels := make(map[string]string, len(s.labels)+1)
			for k, v := range s.labels {
				labels[k] = v
			}
			if math.IsInf(bound, 1) {
				labels["le"] = "+Inf"
			} else {
				labels["le"] = formatFloat(bound)
			}
			samples = append(samples, Sample{Name: h.name + "_bucket", Labels: labels, Value: float64(cumulative)})
		}
		samples = append(samples, Sample{Name: h.name + "_sum", Labels: s.labels, Value: s.sum.Load()})
		samples = append(samples, Sample{Name: h.name + "_count", Labels: s.labels, Value: float64(atomic.LoadUint64(&s.count))})
	}
	return samples
}

// Registry holds registered metrics for exposition.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter creates and registers a counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{base: newBase(name, help, labels)}
	r.register(c)
	return c
}

// NewGauge creates and registers a gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := &Gauge{base: newBase(name, help, labels)}
	r.register(g)
	return g
}

// NewHistogram creates and registers a histogram with the given upper
// bounds. A +Inf bucket is appended when missing.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	h := newHistogram(name, help, buckets, labels)
	r.register(h)
	return h
}

// register panics on duplicate names since they produce invalid
// exposition output.
func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.Name()]; exists {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, m.Name()))
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
}

// snapshot returns the registered metrics in registration order.
func (r *Registry) snapshot() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}
