package federation

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// Metrics holds the federation manager's Prometheus collectors.
type Metrics struct {
	eventsReceived  *prometheus.CounterVec
	eventsAccepted  *prometheus.CounterVec
	eventsSent      *prometheus.CounterVec
	sendFailures    *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	fanoutSkipped   *prometheus.CounterVec
	fanoutDropped   prometheus.Counter
	connectFailures prometheus.Counter

	cacheEntries      prometheus.Gauge
	registeredServers prometheus.Gauge
	connectedServers  prometheus.Gauge
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "events_received_total",
			Help:      "Raw payloads received from federated servers",
		}, []string{"server"}),
		eventsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "events_accepted_total",
			Help:      "Events that passed parsing and the receive policy",
		}, []string{"server"}),
		eventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "events_sent_total",
			Help:      "Events written to a federated server",
		}, []string{"server"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "send_failures_total",
			Help:      "Writes to a federated server that returned an error",
		}, []string{"server"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "events_dropped_total",
			Help:      "Inbound payloads dropped before routing",
		}, []string{"reason"}),
		fanoutSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "fanout_skipped_total",
			Help:      "Fan-out targets skipped by policy or connection state",
		}, []string{"reason"}),
		fanoutDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "fanout_dropped_total",
			Help:      "Sends dropped because the fan-out queue was full",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "connect_failures_total",
			Help:      "Failed connection attempts to federated servers",
		}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "cache_entries",
			Help:      "UIDs currently held in the dedup cache",
		}),
		registeredServers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "registered_servers",
			Help:      "Servers registered with the manager",
		}),
		connectedServers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "federation",
			Name:      "connected_servers",
			Help:      "Servers currently in the connected state",
		}),
	}

	registry.RegisterCounterVec("federation", "events_received_total", m.eventsReceived)
	registry.RegisterCounterVec("federation", "events_accepted_total", m.eventsAccepted)
	registry.RegisterCounterVec("federation", "events_sent_total", m.eventsSent)
	registry.RegisterCounterVec("federation", "send_failures_total", m.sendFailures)
	registry.RegisterCounterVec("federation", "events_dropped_total", m.eventsDropped)
	registry.RegisterCounterVec("federation", "fanout_skipped_total", m.fanoutSkipped)
	registry.RegisterCounter("federation", "fanout_dropped_total", m.fanoutDropped)
	registry.RegisterCounter("federation", "connect_failures_total", m.connectFailures)
	registry.RegisterGauge("federation", "cache_entries", m.cacheEntries)
	registry.RegisterGauge("federation", "registered_servers", m.registeredServers)
	registry.RegisterGauge("federation", "connected_servers", m.connectedServers)

	return m
}

func (m *Metrics) recordReceived(server string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(server).Inc()
}

func (m *Metrics) recordAccepted(server string) {
	if m == nil {
		return
	}
	m.eventsAccepted.WithLabelValues(server).Inc()
}

func (m *Metrics) recordSent(server string) {
	if m == nil {
		return
	}
	m.eventsSent.WithLabelValues(server).Inc()
}

func (m *Metrics) recordSendFailure(server string) {
	if m == nil {
		return
	}
	m.sendFailures.WithLabelValues(server).Inc()
}

func (m *Metrics) recordDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordFanoutSkipped(reason string) {
	if m == nil {
		return
	}
	m.fanoutSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) recordFanoutDropped() {
	if m == nil {
		return
	}
	m.fanoutDropped.Inc()
}

func (m *Metrics) recordConnectFailure() {
	if m == nil {
		return
	}
	m.connectFailures.Inc()
}

func (m *Metrics) setCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}

func (m *Metrics) setServerCounts(registered, connected int) {
	if m == nil {
		return
	}
	m.registeredServers.Set(float64(registered))
	m.connectedServers.Set(float64(connected))
}
