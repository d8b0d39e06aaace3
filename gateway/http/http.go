// Package http serves the operator surface: aggregated component
// health on /healthz, the live federation picture on /status, and
// Prometheus metrics on /metrics. Everything is read-only; nothing
// here mutates tactical state.
package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnitak/takcore/alert"
	"github.com/omnitak/takcore/bridge"
	"github.com/omnitak/takcore/chat"
	"github.com/omnitak/takcore/component"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/federation"
	"github.com/omnitak/takcore/health"
	"github.com/omnitak/takcore/marker"
	"github.com/omnitak/takcore/metric"
	"github.com/omnitak/takcore/pkg/security"
	"github.com/omnitak/takcore/pkg/tlsutil"
	"github.com/omnitak/takcore/transport"
)

// Config tunes the status gateway listener.
type Config struct {
	// Addr is the listen address ("host:port"; ":0" picks a free port).
	Addr         string        `json:"addr"`
	ReadTimeout  time.Duration `json:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8088",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Validate implements config validation for the gateway.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalid(fmt.Errorf("addr must not be empty"),
			"gateway", "Validate", "addr validation")
	}
	if c.ReadTimeout <= 0 {
		return errors.WrapInvalid(fmt.Errorf("readTimeout %v must be positive", c.ReadTimeout),
			"gateway", "Validate", "timeout validation")
	}
	if c.WriteTimeout <= 0 {
		return errors.WrapInvalid(fmt.Errorf("writeTimeout %v must be positive", c.WriteTimeout),
			"gateway", "Validate", "timeout validation")
	}
	return nil
}

// Deps holds the read-only views the gateway serves. Nil members
// render as absent sections of /status; a nil Monitor makes /healthz
// report the gateway alone.
type Deps struct {
	Config          Config
	Monitor         *health.Monitor
	Federation      *federation.Manager
	Markers         *marker.Store
	Chat            *chat.Manager
	Alerts          *alert.Manager
	Bridge          *bridge.Bridge
	TLS             security.ServerTLSConfig
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Gateway owns the status HTTP listener.
type Gateway struct {
	cfg    Config
	logger *slog.Logger

	monitor *health.Monitor
	fed     *federation.Manager
	markers *marker.Store
	chat    *chat.Manager
	alerts  *alert.Manager
	bridge  *bridge.Bridge

	tlsCfg   security.ServerTLSConfig
	registry *metric.MetricsRegistry

	mu         sync.Mutex
	server     *http.Server
	listener   net.Listener
	tlsCleanup func()
	startTime  time.Time
	running    atomic.Bool

	requestsTotal  atomic.Uint64
	requestsFailed atomic.Uint64
}

// NewGateway creates a status gateway. Zero-valued config fields fall
// back to defaults.
func NewGateway(deps Deps) *Gateway {
	cfg := deps.Config
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "gateway")
	}

	return &Gateway{
		cfg:      cfg,
		logger:   logger,
		monitor:  deps.Monitor,
		fed:      deps.Federation,
		markers:  deps.Markers,
		chat:     deps.Chat,
		alerts:   deps.Alerts,
		bridge:   deps.Bridge,
		tlsCfg:   deps.TLS,
		registry: deps.MetricsRegistry,
	}
}

// Initialize validates configuration before Start.
func (g *Gateway) Initialize() error {
	if err := g.cfg.Validate(); err != nil {
		return errors.Wrap(err, "gateway", "Initialize", "config validation")
	}
	return nil
}

// Start binds the listener and begins serving. The bind happens before
// Start returns, so port conflicts surface here, not in a log line.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running.Load() {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", g.handleHealthz)
	mux.HandleFunc("/status", g.handleStatus)
	if g.registry != nil {
		mux.Handle("/metrics", g.registry.Handler())
	}

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  g.cfg.ReadTimeout,
		WriteTimeout: g.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveTLS := g.tlsCfg.Enabled
	if serveTLS {
		var (
			tlsConfig  *tls.Config
			tlsCleanup func()
			err        error
		)
		if g.tlsCfg.Mode == "acme" && g.tlsCfg.ACME.Enabled {
			tlsConfig, tlsCleanup, err = tlsutil.LoadServerTLSConfigWithACME(ctx, g.tlsCfg)
			if err != nil {
				return errors.WrapFatal(err, "gateway", "Start", "load TLS config with ACME")
			}
		} else {
			tlsConfig, err = tlsutil.LoadServerTLSConfigWithMTLS(g.tlsCfg, g.tlsCfg.MTLS)
			if err != nil {
				return errors.WrapFatal(err, "gateway", "Start", "load TLS config")
			}
		}
		server.TLSConfig = tlsConfig
		g.tlsCleanup = tlsCleanup
	}

	listener, err := net.Listen("tcp", g.cfg.Addr)
	if err != nil {
		if g.tlsCleanup != nil {
			g.tlsCleanup()
			g.tlsCleanup = nil
		}
		return errors.WrapFatal(err, "gateway", "Start", "listener bind")
	}

	g.server = server
	g.listener = listener
	g.startTime = time.Now()
	g.running.Store(true)

	go func() {
		var err error
		if serveTLS {
			err = server.ServeTLS(listener, "", "")
		} else {
			err = server.Serve(listener)
		}
		if err != nil && err != http.ErrServerClosed {
			g.logger.Error("status gateway serve failed", "error", err)
		}
	}()

	g.logger.Info("status gateway listening",
		"addr", listener.Addr().String(), "tls", serveTLS)
	return nil
}

// Stop drains in-flight requests and closes the listener. The gateway
// is restartable after Stop.
func (g *Gateway) Stop(timeout time.Duration) error {
	if !g.running.Load() {
		return nil
	}
	g.running.Store(false)

	g.mu.Lock()
	server := g.server
	tlsCleanup := g.tlsCleanup
	g.server = nil
	g.listener = nil
	g.tlsCleanup = nil
	g.mu.Unlock()

	if tlsCleanup != nil {
		defer tlsCleanup()
	}
	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "gateway", "Stop", "graceful shutdown")
	}
	return nil
}

// Addr returns the bound listen address, or "" before Start. With a
// ":0" config this is how callers learn the assigned port.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// StatusResponse is the /status document.
type StatusResponse struct {
	Time    time.Time      `json:"time"`
	Servers []ServerStatus `json:"servers"`
	Cache   *CacheStats    `json:"cache,omitempty"`
	Markers *marker.Stats  `json:"markers,omitempty"`
	Chat    *chat.Stats    `json:"chat,omitempty"`
	Alerts  *alert.Stats   `json:"alerts,omitempty"`
	Bridge  *bridge.Stats  `json:"bridge,omitempty"`
}

// ServerStatus is the per-server slice of /status: identity, the
// manager's view of the connection, and the transport's own counters.
type ServerStatus struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	Status    federation.Status `json:"status"`
	LastError string            `json:"lastError,omitempty"`
	Transport transport.Status  `json:"transport"`
}

// CacheStats summarizes the federation dedup/share cache.
type CacheStats struct {
	Size int `json:"size"`
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	g.requestsTotal.Add(1)
	if r.Method != http.MethodGet {
		g.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	var status health.Status
	if g.monitor != nil {
		status = g.monitor.AggregateHealth("takcore")
	} else {
		status = health.NewHealthy("takcore", "no components registered")
	}

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	g.writeJSON(w, code, status)
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	g.requestsTotal.Add(1)
	if r.Method != http.MethodGet {
		g.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	resp := StatusResponse{
		Time:    time.Now().UTC(),
		Servers: []ServerStatus{},
	}
	if g.fed != nil {
		servers := g.fed.Servers()
		resp.Servers = make([]ServerStatus, 0, len(servers))
		for _, s := range servers {
			resp.Servers = append(resp.Servers, ServerStatus{
				ID:        s.ID,
				Name:      s.Name,
				Status:    s.Status,
				LastError: s.LastError,
				Transport: s.Transport,
			})
		}
		resp.Cache = &CacheStats{Size: g.fed.CacheSize()}
	}
	if g.markers != nil {
		st := g.markers.Stats()
		resp.Markers = &st
	}
	if g.chat != nil {
		st := g.chat.Stats()
		resp.Chat = &st
	}
	if g.alerts != nil {
		st := g.alerts.Stats()
		resp.Alerts = &st
	}
	if g.bridge != nil {
		st := g.bridge.Stats()
		resp.Bridge = &st
	}

	g.writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		g.writeError(w, http.StatusInternalServerError, "encoding failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		g.requestsFailed.Add(1)
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, code int, message string) {
	g.requestsFailed.Add(1)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	data, _ := json.Marshal(map[string]any{
		"error":  message,
		"status": code,
	})
	w.Write(data)
}

// Health reports the gateway's own liveness for the component runner.
func (g *Gateway) Health() component.HealthStatus {
	g.mu.Lock()
	startTime := g.startTime
	g.mu.Unlock()

	running := g.running.Load()
	var uptime time.Duration
	if running && !startTime.IsZero() {
		uptime = time.Since(startTime)
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: int(g.requestsFailed.Load()),
		Uptime:     uptime,
	}
}
