package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsClient is the metrics surface every tier and coordinator records
// through. Labels are always a flat string map; callers own cardinality.
type MetricsClient interface {
	IncrementCounter(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	RecordDuration(name string, d time.Duration, labels map[string]string)
}

// PrometheusMetrics implements MetricsClient on top of
// github.com/prometheus/client_golang, lazily registering a vec per metric
// name the first time it is used — grounded on the teacher's
// PrometheusMetricsClient.
type PrometheusMetrics struct {
	namespace string
	subsystem string

	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics creates a client registering metrics under
// namespace_subsystem_name.
func NewPrometheusMetrics(namespace, subsystem string) *PrometheusMetrics {
	return &PrometheusMetrics{
		namespace:  namespace,
		subsystem:  subsystem,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (c *PrometheusMetrics) IncrementCounter(name string, value float64, labels map[string]string) {
	ctr := c.getOrCreateCounter(name, labelNames(labels))
	ctr.With(prometheus.Labels(labels)).Add(value)
}

func (c *PrometheusMetrics) RecordGauge(name string, value float64, labels map[string]string) {
	g := c.getOrCreateGauge(name, labelNames(labels))
	g.With(prometheus.Labels(labels)).Set(value)
}

func (c *PrometheusMetrics) RecordHistogram(name string, value float64, labels map[string]string) {
	h := c.getOrCreateHistogram(name, labelNames(labels))
	h.With(prometheus.Labels(labels)).Observe(value)
}

func (c *PrometheusMetrics) RecordDuration(name string, d time.Duration, labels map[string]string) {
	c.RecordHistogram(name, d.Seconds(), labels)
}

func (c *PrometheusMetrics) getOrCreateCounter(name string, labels []string) *prometheus.CounterVec {
	c.mu.RLock()
	if v, ok := c.counters[name]; ok {
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.counters[name]; ok {
		return v
	}
	v := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Subsystem: c.subsystem,
		Name:      name,
		Help:      fmt.Sprintf("Counter for %s", name),
	}, labels)
	c.counters[name] = v
	return v
}

func (c *PrometheusMetrics) getOrCreateGauge(name string, labels []string) *prometheus.GaugeVec {
	c.mu.RLock()
	if v, ok := c.gauges[name]; ok {
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.gauges[name]; ok {
		return v
	}
	v := promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Subsystem: c.subsystem,
		Name:      name,
		Help:      fmt.Sprintf("Gauge for %s", name),
	}, labels)
	c.gauges[name] = v
	return v
}

func (c *PrometheusMetrics) getOrCreateHistogram(name string, labels []string) *prometheus.HistogramVec {
	c.mu.RLock()
	if v, ok := c.histograms[name]; ok {
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.histograms[name]; ok {
		return v
	}
	v := promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace,
		Subsystem: c.subsystem,
		Name:      name,
		Help:      fmt.Sprintf("Histogram for %s", name),
		Buckets:   prometheus.DefBuckets,
	}, labels)
	c.histograms[name] = v
	return v
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

// NoopMetrics discards everything; the default when a caller supplies nil.
type NoopMetrics struct{}

func NewNoopMetrics() MetricsClient { return NoopMetrics{} }

func (NoopMetrics) IncrementCounter(string, float64, map[string]string)  {}
func (NoopMetrics) RecordGauge(string, float64, map[string]string)       {}
func (NoopMetrics) RecordHistogram(string, float64, map[string]string)   {}
func (NoopMetrics) RecordDuration(string, time.Duration, map[string]string) {}
