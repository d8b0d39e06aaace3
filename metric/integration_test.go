package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/errors"
)

// relayMetrics mirrors the Metrics shape the domain packages use: build
// the collectors, hand them to the registry, and treat a nil registry
// as metrics disabled.
type relayMetrics struct {
	delivered *prometheus.CounterVec
	backlog   prometheus.Gauge
}

func newRelayMetrics(registry *MetricsRegistry) (*relayMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &relayMetrics{
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "takcore",
			Subsystem: "relay",
			Name:      "delivered_total",
			Help:      "Frames delivered downstream",
		}, []string{"server"}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "takcore",
			Subsystem: "relay",
			Name:      "backlog",
			Help:      "Frames waiting for delivery",
		}),
	}

	if err := registry.RegisterCounterVec("relay", "delivered", m.delivered); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("relay", "backlog", m.backlog); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *relayMetrics) record(server string, backlog int) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(server).Inc()
	m.backlog.Set(float64(backlog))
}

func TestComponentMetrics_RegisterAndScrape(t *testing.T) {
	registry := NewMetricsRegistry()

	relay, err := newRelayMetrics(registry)
	require.NoError(t, err)
	relay.record("tak-main", 4)

	names := gatheredNames(t, registry)
	assert.True(t, names["takcore_relay_delivered_total"])
	assert.True(t, names["takcore_relay_backlog"])
}

func TestComponentMetrics_NilRegistryDisables(t *testing.T) {
	relay, err := newRelayMetrics(nil)
	require.NoError(t, err)
	require.Nil(t, relay)

	// Recording through the nil value is a no-op, not a panic.
	relay.record("tak-main", 1)
}

func TestComponentMetrics_SecondInstanceRejected(t *testing.T) {
	registry := NewMetricsRegistry()

	_, err := newRelayMetrics(registry)
	require.NoError(t, err)

	_, err = newRelayMetrics(registry)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "already registered")
}

func TestComponentMetrics_UnregisterAllowsRestart(t *testing.T) {
	registry := NewMetricsRegistry()

	relay, err := newRelayMetrics(registry)
	require.NoError(t, err)
	relay.record("tak-main", 2)

	require.True(t, registry.Unregister("relay", "delivered"))
	require.True(t, registry.Unregister("relay", "backlog"))

	// A rebuilt component registers cleanly after teardown.
	relay, err = newRelayMetrics(registry)
	require.NoError(t, err)
	relay.record("tak-backup", 0)

	assert.True(t, gatheredNames(t, registry)["takcore_relay_delivered_total"])
}

func TestComponentMetrics_ShareScrapeWithCore(t *testing.T) {
	registry := NewMetricsRegistry()

	relay, err := newRelayMetrics(registry)
	require.NoError(t, err)

	registry.CoreMetrics().RecordComponentStatus("relay", 2)
	relay.record("tak-main", 0)

	names := gatheredNames(t, registry)
	assert.True(t, names["takcore_component_status"])
	assert.True(t, names["takcore_relay_delivered_total"])
}
