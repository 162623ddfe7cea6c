// Package metrics provides a dependency-free metrics registry with
// counters, gauges, and histograms, exposed in Prometheus text format.
//
// StoreMetrics bundles the instruments a store updates from its hooks:
// operation outcomes, mutation counts, flush fan-out, and derived
// recomputations. Attach one with the store's WithMetrics option and
// serve it from the admin API's /metrics endpoint.
package metrics
