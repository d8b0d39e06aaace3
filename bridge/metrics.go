package bridge

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// Metrics holds the bridge's Prometheus collectors.
type Metrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "bridge",
			Name:      "published_total",
			Help:      "Messages published to NATS, by stream",
		}, []string{"stream"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "bridge",
			Name:      "failed_total",
			Help:      "Publishes that failed, by stream",
		}, []string{"stream"}),
	}

	registry.RegisterCounterVec("bridge", "published_total", m.published)
	registry.RegisterCounterVec("bridge", "failed_total", m.failed)

	return m
}

func (m *Metrics) recordPublished(stream string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(stream).Inc()
}

func (m *Metrics) recordFailed(stream string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(stream).Inc()
}
