package natsclient

import (
	"context"
	"errors"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/metric"
)

func TestIntegration_ConnectAndClose(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test needs a NATS container")
	}

	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	client, err := NewClient(tc.URL, WithMaxReconnects(0))
	require.NoError(t, err)

	require.NoError(t, client.Connect(ctx))
	assert.True(t, client.IsHealthy())
	assert.Equal(t, StatusConnected, client.Status())

	rtt, err := client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	require.NoError(t, client.Close(ctx))
	assert.False(t, client.IsHealthy())

	// Second close is a no-op.
	require.NoError(t, client.Close(ctx))
}

// Exercises the state and callback plumbing around link loss without
// actually killing the server; testcontainers assigns a new port on
// restart, so a real stop/start cycle cannot reconnect anyway.
func TestIntegration_HealthChangeCallbacks(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test needs a NATS container")
	}

	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	changes := make(chan bool, 10)
	var disconnects, reconnects int

	client, err := NewClient(tc.URL,
		WithMaxReconnects(0),
		WithDrainTimeout(time.Second),
		WithHealthChangeCallback(func(healthy bool) {
			changes <- healthy
		}),
		WithDisconnectCallback(func(_ error) { disconnects++ }),
		WithReconnectCallback(func() { reconnects++ }),
	)
	require.NoError(t, err)

	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	select {
	case healthy := <-changes:
		assert.True(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("no health callback after connect")
	}

	client.handleDisconnect(nil, errors.New("link lost"))
	assert.Equal(t, StatusReconnecting, client.Status())
	select {
	case healthy := <-changes:
		assert.False(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("no health callback after disconnect")
	}

	client.handleReconnect(nil)
	assert.Equal(t, StatusConnected, client.Status())
	assert.Equal(t, int32(1), client.GetStatus().Reconnects)
	select {
	case healthy := <-changes:
		assert.True(t, healthy)
	case <-time.After(time.Second):
		t.Fatal("no health callback after reconnect")
	}
}

func TestIntegration_ConnectionMetrics(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test needs a NATS container")
	}

	tc := NewTestClient(t, WithFastStartup())
	ctx := context.Background()

	registry := metric.NewMetricsRegistry()

	// Fast probe so an RTT sample lands during the test.
	client, err := NewClient(tc.URL,
		WithMetrics(registry),
		WithHealthInterval(100*time.Millisecond),
		WithMaxReconnects(0),
	)
	require.NoError(t, err)

	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	time.Sleep(300 * time.Millisecond)

	families := gatherMetrics(t, registry)

	status := families["takcore_nats_connection_status"]
	require.NotNil(t, status, "connection status metric should exist")
	assert.Equal(t, float64(StatusConnected), *status.Metric[0].Gauge.Value)

	failures := families["takcore_nats_connection_failures_total"]
	require.NotNil(t, failures, "connection failures metric should exist")
	assert.Equal(t, float64(0), *failures.Metric[0].Counter.Value)

	rtt := families["takcore_nats_rtt_seconds"]
	require.NotNil(t, rtt, "rtt metric should exist")
	assert.Greater(t, *rtt.Metric[0].Gauge.Value, float64(0))
}

func TestIntegration_ConnectionMetrics_Failures(t *testing.T) {
	ctx := context.Background()

	// Each client needs its own registry, metric names collide otherwise.
	registry := metric.NewMetricsRegistry()

	client, err := NewClient("nats://invalid-host:4222",
		WithMetrics(registry),
		WithTimeout(2*time.Second),
		WithMaxReconnects(0),
	)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Error(t, client.Connect(ctx))
	}

	families := gatherMetrics(t, registry)

	failures := families["takcore_nats_connection_failures_total"]
	require.NotNil(t, failures, "connection failures metric should exist")
	assert.Equal(t, float64(3), *failures.Metric[0].Counter.Value)

	status := families["takcore_nats_connection_status"]
	require.NotNil(t, status, "connection status metric should exist")
	assert.Equal(t, float64(StatusDisconnected), *status.Metric[0].Gauge.Value)
}

func gatherMetrics(t *testing.T, registry *metric.MetricsRegistry) map[string]*dto.MetricFamily {
	t.Helper()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[*mf.Name] = mf
	}
	return byName
}
