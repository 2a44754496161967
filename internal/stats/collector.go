// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the library.
const (
	// Tier lookup metrics.
	MetricLocalHits  = "ember_local_hits_total"
	MetricSharedHits = "ember_shared_hits_total"
	MetricMisses     = "ember_misses_total"
	MetricLoads      = "ember_durable_loads_total"

	// Write-back metrics.
	MetricFlushes        = "ember_flushes_total"
	MetricFlushThrottled = "ember_flushes_throttled_total"
	MetricFlushFailures  = "ember_flush_failures_total"
	MetricConflicts      = "ember_cache_conflicts_total"

	// Session metrics.
	MetricSessionEntities = "ember_session_entities"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
