package marker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// Metrics holds Prometheus metrics for the marker store.
type Metrics struct {
	eventsIngested prometheus.Counter
	created        prometheus.Counter
	updated        prometheus.Counter
	removed        *prometheus.CounterVec
	liveMarkers    prometheus.Gauge
	sweepDuration  prometheus.Histogram
}

// newMetrics creates and registers marker store metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		eventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "marker",
			Name:      "events_ingested_total",
			Help:      "Position events accepted by the marker store",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "marker",
			Name:      "markers_created_total",
			Help:      "Markers created from first-seen uids",
		}),
		updated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "marker",
			Name:      "markers_updated_total",
			Help:      "In-place marker updates for known uids",
		}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "marker",
			Name:      "markers_removed_total",
			Help:      "Markers removed, labeled by reason",
		}, []string{"reason"}),
		liveMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "marker",
			Name:      "live_markers",
			Help:      "Markers currently held by the store",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "takcore",
			Subsystem: "marker",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent in each staleness sweep",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}

	registry.RegisterCounter("marker", "events_ingested", metrics.eventsIngested)
	registry.RegisterCounter("marker", "markers_created", metrics.created)
	registry.RegisterCounter("marker", "markers_updated", metrics.updated)
	registry.RegisterCounterVec("marker", "markers_removed", metrics.removed)
	registry.RegisterGauge("marker", "live_markers", metrics.liveMarkers)
	registry.RegisterHistogram("marker", "sweep_duration", metrics.sweepDuration)

	return metrics
}

func (m *Metrics) recordRemoved(reason RemoveReason) {
	if m == nil {
		return
	}
	m.removed.WithLabelValues(string(reason)).Inc()
}
