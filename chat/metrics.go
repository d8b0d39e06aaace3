package chat

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omnitak/takcore/metric"
)

// Metrics holds the chat manager's Prometheus collectors. Per-room
// labels are deliberately absent: room names arrive from the wire and
// would grow the series set without bound.
type Metrics struct {
	messages     prometheus.Counter
	duplicates   prometheus.Counter
	composed     prometheus.Counter
	historyDrops prometheus.Counter

	rooms prometheus.Gauge
}

func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages recorded into room history",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "chat",
			Name:      "duplicates_total",
			Help:      "Chat messages dropped as duplicates",
		}),
		composed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "chat",
			Name:      "composed_total",
			Help:      "Outgoing chat messages built by Compose",
		}),
		historyDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "chat",
			Name:      "history_drops_total",
			Help:      "Messages displaced from a full room history",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "chat",
			Name:      "rooms",
			Help:      "Conversations currently tracked",
		}),
	}

	registry.RegisterCounter("chat", "messages_total", m.messages)
	registry.RegisterCounter("chat", "duplicates_total", m.duplicates)
	registry.RegisterCounter("chat", "composed_total", m.composed)
	registry.RegisterCounter("chat", "history_drops_total", m.historyDrops)
	registry.RegisterGauge("chat", "rooms", m.rooms)

	return m
}

func (m *Metrics) recordMessage() {
	if m == nil {
		return
	}
	m.messages.Inc()
}

func (m *Metrics) recordDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Metrics) recordComposed() {
	if m == nil {
		return
	}
	m.composed.Inc()
}

func (m *Metrics) recordHistoryDrop() {
	if m == nil {
		return
	}
	m.historyDrops.Inc()
}

func (m *Metrics) setRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}
