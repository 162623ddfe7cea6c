package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("test_total", "help", "op")

	require.NoError(t, c.Inc("run"))
	require.NoError(t, c.Add(2, "run"))
	require.NoError(t, c.Inc("flush"))

	samples := c.Collect()
	require.Len(t, samples, 2)
	byOp := map[string]float64{}
	for _, s := range samples {
		byOp[s.Labels["op"]] = s.Value
	}
	assert.Equal(t, 3.0, byOp["run"])
	assert.Equal(t, 1.0, byOp["flush"])
}

func TestCounterRejectsNegative(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("test_total", "help")
	assert.ErrorIs(t, c.Add(-1), ErrNegativeCounterValue)
}

func TestLabelCountMismatch(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("test_total", "help", "a", "b")
	assert.ErrorIs(t, c.Inc("only-one"), ErrLabelCountMismatch)
}

func TestGauge(t *testing.T) {
	r := NewRegistry()
	g := r.NewGauge("test_gauge", "help")

	require.NoError(t, g.Set(5))
	require.NoError(t, g.Inc())
	require.NoError(t, g.Dec())
	require.NoError(t, g.Dec())

	samples := g.Collect()
	require.Len(t, samples, 1)
	assert.Equal(t, 4.0, samples[0].Value)
}

func TestHistogram(t *testing.T) {
	r := NewRegistry()
	h := r.NewHistogram("test_hist", "help", []float64{1, 5})

	require.NoError(t, h.Observe(0.5))
	require.NoError(t, h.Observe(3))
	require.NoError(t, h.Observe(100))

	byName := map[string]float64{}
	for _, s := range h.Collect() {
		key := s.Name
		if le, ok := s.Labels["le"]; ok {
			key += ":" + le
		}
		byName[key] = s.Value
	}
	assert.Equal(t, 1.0, byName["test_hist_bucket:1"])
	assert.Equal(t, 2.0, byName["test_hist_bucket:5"])
	assert.Equal(t, 3.0, byName["test_hist_bucket:+Inf"])
	assert.Equal(t, 3.0, byName["test_hist_count"])
	assert.Equal(t, 103.5, byName["test_hist_sum"])
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("dup", "help")
	assert.Panics(t, func() { r.NewCounter("dup", "help") })
}

func TestHandlerExposition(t *testing.T) {
	m := NewStoreMetrics()
	require.NoError(t, m.OperationsTotal.Inc("increment", "ok"))
	require.NoError(t, m.FlushesTotal.Inc())
	require.NoError(t, m.Observers.Set(2))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "# TYPE grove_operations_total counter")
	assert.Contains(t, body, `grove_operations_total{operation="increment",status="ok"} 1`)
	assert.Contains(t, body, "grove_flushes_total 1")
	assert.Contains(t, body, "grove_observers 2")
}
