package transport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// Metrics holds per-connection Prometheus collectors, labeled by remote
// address. Connections opened by the same dialer share one set.
type Metrics struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	bytesSent        *prometheus.CounterVec
	bytesReceived    *prometheus.CounterVec
	reconnects       *prometheus.CounterVec
	sendErrors       *prometheus.CounterVec
	readErrors       *prometheus.CounterVec
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "transport",
			Name:      "messages_sent_total",
			Help:      "Events written to the remote endpoint",
		}, []string{"address"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "transport",
			Name:      "messages_received_total",
			Help:      "Event frames delivered from the remote endpoint",
		}, []string{"address"}),
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "transport",
			Name:      "bytes_sent_total",
			Help:      "Payload bytes written to the remote endpoint",
		}, []string{"address"}),
		bytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "transport",
			Name:      "bytes_received_total",
			Help:      "Payload bytes delivered from the remote endpoint",
		}, []string{"address"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Successful redials after a lost link",
		}, []string{"address"}),
		sendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "transport",
			Name:      "send_errors_total",
			Help:      "Writes that returned an error",
		}, []string{"address"}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "transport",
			Name:      "read_errors_total",
			Help:      "Read loops terminated by an error",
		}, []string{"address"}),
	}

	registry.RegisterCounterVec("transport", "messages_sent_total", m.messagesSent)
	registry.RegisterCounterVec("transport", "messages_received_total", m.messagesReceived)
	registry.RegisterCounterVec("transport", "bytes_sent_total", m.bytesSent)
	registry.RegisterCounterVec("transport", "bytes_received_total", m.bytesReceived)
	registry.RegisterCounterVec("transport", "reconnects_total", m.reconnects)
	registry.RegisterCounterVec("transport", "send_errors_total", m.sendErrors)
	registry.RegisterCounterVec("transport", "read_errors_total", m.readErrors)

	return m
}

func (m *Metrics) recordSent(address string, n int) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(address).Inc()
	m.bytesSent.WithLabelValues(address).Add(float64(n))
}

func (m *Metrics) recordReceived(address string, n int) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(address).Inc()
	m.bytesReceived.WithLabelValues(address).Add(float64(n))
}

func (m *Metrics) recordReconnect(address string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(address).Inc()
}

func (m *Metrics) recordSendError(address string) {
	if m == nil {
		return
	}
	m.sendErrors.WithLabelValues(address).Inc()
}

func (m *Metrics) recordReadError(address string) {
	if m == nil {
		return
	}
	m.readErrors.WithLabelValues(address).Inc()
}
