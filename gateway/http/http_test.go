package http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/alert"
	"github.com/omnitak/takcore/bridge"
	"github.com/omnitak/takcore/chat"
	"github.com/omnitak/takcore/component"
	"github.com/omnitak/takcore/cot"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/federation"
	"github.com/omnitak/takcore/health"
	"github.com/omnitak/takcore/marker"
	"github.com/omnitak/takcore/metric"
	"github.com/omnitak/takcore/router"
	"github.com/omnitak/takcore/transport"
)

// startGateway binds a gateway on a loopback port and registers
// cleanup. Callers read the assigned address via Addr().
func startGateway(t *testing.T, deps Deps) *Gateway {
	t.Helper()

	if deps.Config == (Config{}) {
		deps.Config = Config{
			Addr:         "127.0.0.1:0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		}
	}

	g := NewGateway(deps)
	require.NoError(t, g.Initialize())
	require.NoError(t, g.Start(context.Background()))
	t.Cleanup(func() { _ = g.Stop(2 * time.Second) })
	return g
}

func get(t *testing.T, g *Gateway, path string) (int, []byte) {
	t.Helper()

	resp, err := http.Get("http://" + g.Addr() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"explicit addr", Config{Addr: "127.0.0.1:9443", ReadTimeout: time.Second, WriteTimeout: time.Second}, false},
		{"empty addr", Config{ReadTimeout: time.Second, WriteTimeout: time.Second}, true},
		{"zero read timeout", Config{Addr: ":8088", WriteTimeout: time.Second}, true},
		{"negative write timeout", Config{Addr: ":8088", ReadTimeout: time.Second, WriteTimeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGateway_Healthz(t *testing.T) {
	monitor := health.NewMonitor()
	monitor.UpdateHealthy("router", "classifying")
	monitor.UpdateHealthy("federation", "2 servers connected")

	g := startGateway(t, Deps{Monitor: monitor})

	code, body := get(t, g, "/healthz")
	require.Equal(t, http.StatusOK, code)

	var status health.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "takcore", status.Component)
	assert.True(t, status.IsHealthy())
	assert.Len(t, status.SubStatuses, 2)

	monitor.UpdateUnhealthy("federation", "all servers down")
	code, body = get(t, g, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.True(t, status.IsUnhealthy())

	// Degraded components keep the endpoint green; only unhealthy
	// flips it to 503.
	monitor.UpdateDegraded("federation", "1 of 2 servers connected")
	code, body = get(t, g, "/healthz")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &status))
	assert.True(t, status.IsDegraded())
}

func TestGateway_HealthzWithoutMonitor(t *testing.T) {
	g := startGateway(t, Deps{})

	code, body := get(t, g, "/healthz")
	require.Equal(t, http.StatusOK, code)

	var status health.Status
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "takcore", status.Component)
	assert.True(t, status.IsHealthy())
}

func TestGateway_Status(t *testing.T) {
	fed := federation.NewManager(federation.ManagerDeps{})
	require.NoError(t, fed.AddServer("tak-alpha", "Alpha Site", transport.Config{
		Host: "alpha.example.com", Port: 8087, Protocol: transport.ProtocolTCP,
	}, federation.DefaultPolicy()))
	require.NoError(t, fed.AddServer("tak-main", "Main TAK", transport.Config{
		Host: "tak.example.com", Port: 8087, Protocol: transport.ProtocolTCP,
	}, federation.DefaultPolicy()))

	store := marker.NewStore(marker.StoreDeps{})
	_, err := store.Ingest(cot.NewPositionEvent("UNIT-1", "a-f-G-U-C", "ALPHA1",
		38.8977, -77.0365, 120, 5*time.Minute))
	require.NoError(t, err)

	chatMgr := chat.NewManager(chat.ManagerDeps{})
	require.NoError(t, chatMgr.Initialize())
	cls := router.Classify(cot.NewChatEvent("UNIT-1", "ALPHA1", "All Chat Rooms", "radio check"))
	require.NotNil(t, cls.Chat)
	_, err = chatMgr.Handle(cls.Chat)
	require.NoError(t, err)

	alertMgr := alert.NewManager(alert.ManagerDeps{})
	require.NoError(t, alertMgr.Initialize())
	cls = router.Classify(cot.NewEmergencyEvent("UNIT-2", "BRAVO2", cot.TypeAlert911, 38.9, -77.0))
	require.NotNil(t, cls.Alert)
	require.NoError(t, alertMgr.Handle(cls.Alert))

	g := startGateway(t, Deps{
		Federation: fed,
		Markers:    store,
		Chat:       chatMgr,
		Alerts:     alertMgr,
		Bridge:     bridge.New(bridge.Deps{}),
	})

	resp, err := http.Get("http://" + g.Addr() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.False(t, doc.Time.IsZero())

	require.Len(t, doc.Servers, 2)
	assert.Equal(t, "tak-alpha", doc.Servers[0].ID, "servers sorted by id")
	assert.Equal(t, "tak-main", doc.Servers[1].ID)
	assert.Equal(t, "Main TAK", doc.Servers[1].Name)
	assert.Equal(t, federation.StatusDisconnected, doc.Servers[1].Status)
	assert.False(t, doc.Servers[1].Transport.Connected)

	require.NotNil(t, doc.Cache)
	assert.Equal(t, 0, doc.Cache.Size)

	require.NotNil(t, doc.Markers)
	assert.Equal(t, 1, doc.Markers.Total)
	assert.Equal(t, int64(1), doc.Markers.Ingested)

	require.NotNil(t, doc.Chat)
	assert.Equal(t, 1, doc.Chat.Rooms)
	assert.Equal(t, int64(1), doc.Chat.Handled)

	require.NotNil(t, doc.Alerts)
	assert.Equal(t, 1, doc.Alerts.Active)
	assert.Equal(t, int64(1), doc.Alerts.Raised)

	require.NotNil(t, doc.Bridge)
	assert.Equal(t, int64(0), doc.Bridge.Published)
}

func TestGateway_StatusAbsentSections(t *testing.T) {
	g := startGateway(t, Deps{})

	code, body := get(t, g, "/status")
	require.Equal(t, http.StatusOK, code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Contains(t, raw, "time")
	require.Contains(t, raw, "servers")
	assert.Equal(t, "[]", string(raw["servers"]), "no federation still renders an empty list")
	for _, absent := range []string{"cache", "markers", "chat", "alerts", "bridge"} {
		assert.NotContains(t, raw, absent)
	}
}

func TestGateway_MethodNotAllowed(t *testing.T) {
	g := startGateway(t, Deps{})

	for _, path := range []string{"/healthz", "/status"} {
		resp, err := http.Post("http://"+g.Addr()+path, "application/json", nil)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()

		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)

		var errDoc map[string]any
		require.NoError(t, json.Unmarshal(body, &errDoc))
		assert.Contains(t, errDoc["error"], "POST")
		assert.Equal(t, float64(http.StatusMethodNotAllowed), errDoc["status"])
	}

	assert.Equal(t, 2, g.Health().ErrorCount)
}

func TestGateway_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	store := marker.NewStore(marker.StoreDeps{MetricsRegistry: registry})
	_, err := store.Ingest(cot.NewPositionEvent("UNIT-1", "a-f-G-U-C", "ALPHA1",
		38.8977, -77.0365, 120, 5*time.Minute))
	require.NoError(t, err)

	g := startGateway(t, Deps{Markers: store, MetricsRegistry: registry})

	code, body := get(t, g, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "go_goroutines")
	assert.Contains(t, string(body), "takcore_marker_live_markers")
}

func TestGateway_MetricsNotRegistered(t *testing.T) {
	g := startGateway(t, Deps{})

	code, _ := get(t, g, "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGateway_Lifecycle(t *testing.T) {
	g := NewGateway(Deps{Config: Config{
		Addr:         "127.0.0.1:0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}})
	require.NoError(t, g.Initialize())

	// Stop before start is a no-op.
	require.NoError(t, g.Stop(time.Second))
	assert.Empty(t, g.Addr())

	require.NoError(t, g.Start(context.Background()))
	first := g.Addr()
	require.NotEmpty(t, first)

	// Second start is a no-op; the listener stays put.
	require.NoError(t, g.Start(context.Background()))
	assert.Equal(t, first, g.Addr())
	assert.True(t, g.Health().Healthy)

	code, _ := get(t, g, "/healthz")
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, g.Stop(2*time.Second))
	assert.Empty(t, g.Addr())
	assert.False(t, g.Health().Healthy)

	// Restart binds a fresh listener.
	require.NoError(t, g.Start(context.Background()))
	require.NotEmpty(t, g.Addr())
	code, _ = get(t, g, "/healthz")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, g.Stop(2*time.Second))
}

func TestGateway_BindConflict(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	g := NewGateway(Deps{Config: Config{
		Addr:         ln.Addr().String(),
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}})
	require.NoError(t, g.Initialize())

	err = g.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.False(t, g.Health().Healthy)
}

// TestGateway_ComprehensiveLifecycle runs the shared lifecycle conformance suite.
func TestGateway_ComprehensiveLifecycle(t *testing.T) {
	component.StandardLifecycleTests(t, func() component.Component {
		return NewGateway(Deps{Config: Config{
			Addr:         "127.0.0.1:0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		}})
	})
}
