// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kindling/ember/internal/stats"
)

// Collector implements stats.Collector using Prometheus metrics. Metrics
// are created lazily on first use and registered with the configured
// registerer.
type Collector struct {
	registry prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	c.mu.Lock()
	counter, ok := c.counters[name]
	if !ok {
		counter = register(c.registry, prometheus.NewCounter(prometheus.CounterOpts{
			Name: name,
			Help: name,
		}))
		c.counters[name] = counter
	}
	c.mu.Unlock()

	counter.Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	c.mu.Lock()
	gauge, ok := c.gauges[name]
	if !ok {
		gauge = register(c.registry, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name,
			Help: name,
		}))
		c.gauges[name] = gauge
	}
	c.mu.Unlock()

	gauge.Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	c.mu.Lock()
	histogram, ok := c.histograms[name]
	if !ok {
		histogram = register(c.registry, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.DefBuckets,
		}))
		c.histograms[name] = histogram
	}
	c.mu.Unlock()

	histogram.Observe(value)
}

// register registers m, reusing an already-registered collector of the
// same name when one exists. Registration failures other than duplicates
// leave m usable, just unexported from the registry.
func register[M prometheus.Collector](reg prometheus.Registerer, m M) M {
	if err := reg.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				return existing
			}
		}
	}
	return m
}
