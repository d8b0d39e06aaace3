package alert

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// Metrics holds the alert manager's Prometheus collectors.
type Metrics struct {
	raised  prometheus.Counter
	updated prometheus.Counter
	cleared *prometheus.CounterVec

	active prometheus.Gauge
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		raised: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "alert",
			Name:      "raised_total",
			Help:      "Emergency beacons raised",
		}),
		updated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "alert",
			Name:      "updated_total",
			Help:      "Refreshes applied to active beacons",
		}),
		cleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "alert",
			Name:      "cleared_total",
			Help:      "Beacons cleared, by reason",
		}, []string{"reason"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "alert",
			Name:      "active",
			Help:      "Beacons currently active",
		}),
	}

	registry.RegisterCounter("alert", "raised_total", m.raised)
	registry.RegisterCounter("alert", "updated_total", m.updated)
	registry.RegisterCounterVec("alert", "cleared_total", m.cleared)
	registry.RegisterGauge("alert", "active", m.active)

	return m
}

func (m *Metrics) recordRaised() {
	if m == nil {
		return
	}
	m.raised.Inc()
}

func (m *Metrics) recordUpdated() {
	if m == nil {
		return
	}
	m.updated.Inc()
}

func (m *Metrics) recordCleared(reason ClearReason) {
	if m == nil {
		return
	}
	m.cleared.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}
