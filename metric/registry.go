package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/omnitak/takcore/errors"
)

// MetricsRegistrar accepts collectors from components. Registration is
// keyed by component and metric name; a key seen twice is rejected before
// the collector reaches Prometheus.
type MetricsRegistrar interface {
	RegisterCounter(component, name string, counter prometheus.Counter) error
	RegisterGauge(component, name string, gauge prometheus.Gauge) error
	RegisterHistogram(component, name string, histogram prometheus.Histogram) error
	RegisterCounterVec(component, name string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(component, name string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(component, name string, histogramVec *prometheus.HistogramVec) error
	Unregister(component, name string) bool
}

// MetricsRegistry owns the process-wide Prometheus registry: the core
// platform collectors, the Go runtime collectors, and every collector a
// component registers at startup.
type MetricsRegistry struct {
	prom  *prometheus.Registry
	core  *Metrics
	owned map[string]prometheus.Collector
	mu    sync.Mutex
}

// NewMetricsRegistry builds a registry with the platform collectors and
// the Go runtime and process collectors already in place.
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prom:  prometheus.NewRegistry(),
		core:  NewMetrics(),
		owned: make(map[string]prometheus.Collector),
	}

	r.prom.MustRegister(
		r.core.ComponentStatus,
		r.core.EventsProcessed,
		r.core.ProcessingDuration,
		r.core.ErrorsTotal,
		r.core.HealthStatus,
	)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the wrapped registry. The scrape handler
// and test gathers read from it directly.
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prom
}

// CoreMetrics returns the platform collectors shared by every component.
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.core
}

// register tracks a collector under the component.metric key and hands it
// to Prometheus. Duplicate keys and collector name collisions come back
// as invalid errors; any other Prometheus refusal is fatal.
func (r *MetricsRegistry) register(component, name, method string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := component + "." + name
	if _, taken := r.owned[key]; taken {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered", key),
			"MetricsRegistry", method, "duplicate registration")
	}

	if err := r.prom.Register(collector); err != nil {
		var dup prometheus.AlreadyRegisteredError
		if stderrors.As(err, &dup) {
			return errors.WrapInvalid(err, "MetricsRegistry", method,
				fmt.Sprintf("collector for %s collides with an existing metric", key))
		}
		return errors.WrapFatal(err, "MetricsRegistry", method,
			"prometheus rejected the collector")
	}

	r.owned[key] = collector
	return nil
}

// RegisterCounter adds a counter under the given component.
func (r *MetricsRegistry) RegisterCounter(component, name string, counter prometheus.Counter) error {
	return r.register(component, name, "RegisterCounter", counter)
}

// RegisterGauge adds a gauge under the given component.
func (r *MetricsRegistry) RegisterGauge(component, name string, gauge prometheus.Gauge) error {
	return r.register(component, name, "RegisterGauge", gauge)
}

// RegisterHistogram adds a histogram under the given component.
func (r *MetricsRegistry) RegisterHistogram(component, name string, histogram prometheus.Histogram) error {
	return r.register(component, name, "RegisterHistogram", histogram)
}

// RegisterCounterVec adds a labeled counter family under the given component.
func (r *MetricsRegistry) RegisterCounterVec(component, name string, counterVec *prometheus.CounterVec) error {
	return r.register(component, name, "RegisterCounterVec", counterVec)
}

// RegisterGaugeVec adds a labeled gauge family under the given component.
func (r *MetricsRegistry) RegisterGaugeVec(component, name string, gaugeVec *prometheus.GaugeVec) error {
	return r.register(component, name, "RegisterGaugeVec", gaugeVec)
}

// RegisterHistogramVec adds a labeled histogram family under the given component.
func (r *MetricsRegistry) RegisterHistogramVec(
	component, name string, histogramVec *prometheus.HistogramVec) error {
	return r.register(component, name, "RegisterHistogramVec", histogramVec)
}

// Unregister drops a previously registered metric. It reports false for
// keys this registry never saw, or when Prometheus keeps the collector.
func (r *MetricsRegistry) Unregister(component, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := component + "." + name
	collector, ok := r.owned[key]
	if !ok {
		return false
	}
	if !r.prom.Unregister(collector) {
		return false
	}
	delete(r.owned, key)
	return true
}
