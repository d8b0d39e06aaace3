package natsclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// clientMetrics holds Prometheus metrics for the NATS connection.
// All methods are nil-safe so the client works without a registry wired in.
type clientMetrics struct {
	status     prometheus.Gauge
	failures   prometheus.Counter
	reconnects prometheus.Counter
	rtt        prometheus.Gauge
}

// newClientMetrics creates and registers connection metrics with the provided registry.
func newClientMetrics(registry *metric.MetricsRegistry) (*clientMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &clientMetrics{
		status: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "nats",
			Name:      "connection_status",
			Help:      "Connection status (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)",
		}),

		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "nats",
			Name:      "connection_failures_total",
			Help:      "Total number of connection failures",
		}),

		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Total number of successful reconnects",
		}),

		rtt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "nats",
			Name:      "rtt_seconds",
			Help:      "Round-trip time to the NATS server measured by the health monitor",
		}),
	}

	// Register all metrics
	if err := registry.RegisterGauge("nats", "connection_status", m.status); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats", "connection_failures", m.failures); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats", "reconnects", m.reconnects); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("nats", "rtt", m.rtt); err != nil {
		return nil, err
	}

	return m, nil
}

// setStatus records the current connection status.
func (m *clientMetrics) setStatus(status ConnectionStatus) {
	if m != nil {
		m.status.Set(float64(status))
	}
}

// recordFailure records a connection failure.
func (m *clientMetrics) recordFailure() {
	if m != nil {
		m.failures.Inc()
	}
}

// recordReconnect records a successful reconnect.
func (m *clientMetrics) recordReconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

// observeRTT records the latest round-trip time.
func (m *clientMetrics) observeRTT(rtt time.Duration) {
	if m != nil {
		m.rtt.Set(rtt.Seconds())
	}
}
