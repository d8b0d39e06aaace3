package federation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/omnitak/takcore/cot"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/metric"
	"github.com/omnitak/takcore/pkg/pubsub"
	"github.com/omnitak/takcore/pkg/worker"
	"github.com/omnitak/takcore/router"
	"github.com/omnitak/takcore/transport"
)

// Config tunes the manager's fan-out machinery, the per-server send
// rate limit, and the dedup cache.
type Config struct {
	// FanoutWorkers sizes the send worker pool.
	FanoutWorkers int `json:"fanoutWorkers"`
	// FanoutQueue bounds pending sends; overflow drops the send.
	FanoutQueue int `json:"fanoutQueue"`
	// SendRate caps events per second written to any one server.
	// Negative disables the limit.
	SendRate float64 `json:"sendRate"`
	// SendBurst is the per-server limiter's burst allowance.
	SendBurst int `json:"sendBurst"`
	// CacheRetention is how long a UID stays in the dedup cache.
	CacheRetention time.Duration `json:"cacheRetention"`
	// CacheSweepInterval is how often expired cache entries are dropped.
	CacheSweepInterval time.Duration `json:"cacheSweepInterval"`
	// MaxEventSize drops inbound payloads larger than this many bytes.
	MaxEventSize int `json:"maxEventSize"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FanoutWorkers:      4,
		FanoutQueue:        1024,
		SendRate:           50,
		SendBurst:          100,
		CacheRetention:     time.Hour,
		CacheSweepInterval: time.Minute,
		MaxEventSize:       256 * 1024,
	}
}

// Validate implements config validation for the manager.
func (c Config) Validate() error {
	if c.FanoutWorkers <= 0 {
		return errors.WrapInvalid(fmt.Errorf("fanoutWorkers %d must be positive", c.FanoutWorkers),
			"federation", "Validate", "worker count validation")
	}
	if c.FanoutQueue <= 0 {
		return errors.WrapInvalid(fmt.Errorf("fanoutQueue %d must be positive", c.FanoutQueue),
			"federation", "Validate", "queue size validation")
	}
	if c.SendRate > 0 && c.SendBurst <= 0 {
		return errors.WrapInvalid(fmt.Errorf("sendBurst %d must be positive when sendRate is set", c.SendBurst),
			"federation", "Validate", "rate limit validation")
	}
	if c.CacheRetention <= 0 {
		return errors.WrapInvalid(fmt.Errorf("cacheRetention %v must be positive", c.CacheRetention),
			"federation", "Validate", "cache retention validation")
	}
	if c.CacheSweepInterval <= 0 {
		return errors.WrapInvalid(fmt.Errorf("cacheSweepInterval %v must be positive", c.CacheSweepInterval),
			"federation", "Validate", "cache sweep validation")
	}
	if c.MaxEventSize <= 0 {
		return errors.WrapInvalid(fmt.Errorf("maxEventSize %d must be positive", c.MaxEventSize),
			"federation", "Validate", "event size validation")
	}
	return nil
}

// Inbound is one event accepted from a federated server: parsed,
// policy-filtered, and classified. Delivered to bus subscribers.
type Inbound struct {
	ServerID   string
	ServerName string
	Event      *cot.Event
	Classified router.Classified
	ReceivedAt time.Time
}

// ManagerDeps holds runtime dependencies for the federation manager.
type ManagerDeps struct {
	Config          Config                  // Business logic configuration
	Dialer          transport.Dialer        // Runtime dependency
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
}

// sendTask is one queued write to one server. uid is carried for logs.
type sendTask struct {
	serverID string
	uid      string
	payload  []byte
}

// Manager owns the registry of federated servers, the per-UID dedup
// cache, and the fan-out pipeline between them. HandleIncoming is safe
// to call concurrently from every connection's dispatch goroutine.
type Manager struct {
	cfg    Config
	dialer transport.Dialer
	logger *slog.Logger

	mu      sync.RWMutex
	servers map[string]*state

	cache *Cache
	bus   *pubsub.Bus[Inbound]
	pool  *worker.Pool[sendTask]

	// Lifecycle management
	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool

	metrics *Metrics
}

// NewManager creates a federation manager using the idiomatic
// constructor pattern. Zero-valued config fields fall back to defaults.
func NewManager(deps ManagerDeps) *Manager {
	cfg := deps.Config
	def := DefaultConfig()
	if cfg.FanoutWorkers == 0 {
		cfg.FanoutWorkers = def.FanoutWorkers
	}
	if cfg.FanoutQueue == 0 {
		cfg.FanoutQueue = def.FanoutQueue
	}
	if cfg.SendRate == 0 {
		cfg.SendRate = def.SendRate
	}
	if cfg.SendBurst == 0 {
		cfg.SendBurst = def.SendBurst
	}
	if cfg.CacheRetention == 0 {
		cfg.CacheRetention = def.CacheRetention
	}
	if cfg.CacheSweepInterval == 0 {
		cfg.CacheSweepInterval = def.CacheSweepInterval
	}
	if cfg.MaxEventSize == 0 {
		cfg.MaxEventSize = def.MaxEventSize
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "federation")
	}

	m := &Manager{
		cfg:     cfg,
		dialer:  deps.Dialer,
		logger:  logger,
		servers: make(map[string]*state),
		cache:   NewCache(),
		bus:     pubsub.NewBus[Inbound](),
		metrics: newMetrics(deps.MetricsRegistry),
	}
	m.pool = worker.NewPool(cfg.FanoutWorkers, cfg.FanoutQueue, m.processSend,
		worker.WithMetrics[sendTask](deps.MetricsRegistry, "federation_fanout"))
	return m
}

// Initialize validates configuration and dependencies before Start.
func (m *Manager) Initialize() error {
	if m.dialer == nil {
		return errors.WrapInvalid(fmt.Errorf("transport dialer is required"),
			"federation", "Initialize", "dependency check")
	}
	if err := m.cfg.Validate(); err != nil {
		return errors.Wrap(err, "federation", "Initialize", "config validation")
	}
	return nil
}

// Start launches the fan-out workers and the cache sweep.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return nil // Already running, idempotent
	}

	if err := m.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "federation", "Start", "fan-out pool")
	}

	m.shutdown = make(chan struct{})
	m.done = make(chan struct{})
	m.running.Store(true)

	go m.sweepLoop(ctx)
	return nil
}

// Stop disconnects every server, drains queued sends, and closes the
// inbound bus, ending subscriber streams. Not restartable after Stop.
func (m *Manager) Stop(timeout time.Duration) error {
	if !m.running.Load() {
		return nil
	}
	m.running.Store(false)

	for _, srv := range m.Servers() {
		if srv.Status != StatusConnected && srv.Status != StatusConnecting {
			continue
		}
		if err := m.DisconnectServer(srv.ID); err != nil {
			m.logger.Warn("Disconnect during shutdown failed", "server", srv.ID, "error", err)
		}
	}

	m.mu.Lock()
	if m.shutdown != nil {
		select {
		case <-m.shutdown:
		default:
			close(m.shutdown)
		}
	}
	done := m.done
	m.mu.Unlock()

	defer m.bus.Close()

	if err := m.pool.Stop(timeout); err != nil {
		return errors.Wrap(err, "federation", "Stop", "fan-out pool drain")
	}

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"federation", "Stop", "graceful shutdown")
	}
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.CacheSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			removed := m.cache.sweep(time.Now().UTC(), m.cfg.CacheRetention)
			if removed > 0 {
				m.logger.Debug("Swept dedup cache", "removed", removed, "remaining", m.cache.Len())
			}
			m.metrics.setCacheEntries(m.cache.Len())
		}
	}
}

// AddServer registers a server definition. The server starts
// disconnected; call ConnectServer to establish the link.
func (m *Manager) AddServer(id, name string, cfg transport.Config, policy Policy) error {
	if id == "" {
		return errors.WrapInvalid(fmt.Errorf("server id must not be empty"),
			"federation", "AddServer", "id validation")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "federation", "AddServer", "transport config validation")
	}

	limit := rate.Limit(m.cfg.SendRate)
	burst := m.cfg.SendBurst
	if m.cfg.SendRate <= 0 {
		limit = rate.Inf
		burst = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[id]; exists {
		return errors.WrapInvalid(fmt.Errorf("server %q: %w", id, errors.ErrServerExists),
			"federation", "AddServer", "duplicate registration")
	}
	m.servers[id] = &state{
		def: Server{
			ID:     id,
			Name:   name,
			Config: cfg,
			Policy: policy,
			Status: StatusDisconnected,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
	m.updateServerGaugesLocked()
	m.logger.Info("Registered federated server", "server", id, "name", name, "address", cfg.Address())
	return nil
}

// RemoveServer disconnects (if needed) and unregisters a server. Cache
// entries already claimed for it are left alone; they age out with the
// retention sweep.
func (m *Manager) RemoveServer(id string) error {
	m.mu.Lock()
	st, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return errors.WrapInvalid(fmt.Errorf("server %q: %w", id, errors.ErrServerNotFound),
			"federation", "RemoveServer", "server lookup")
	}
	conn := st.conn
	st.conn = nil
	st.def.Status = StatusDisconnected
	delete(m.servers, id)
	m.updateServerGaugesLocked()
	m.mu.Unlock()

	if conn != nil {
		conn.OnMessage(nil)
		if err := conn.Close(); err != nil {
			m.logger.Warn("Close during removal failed", "server", id, "error", err)
		}
	}
	m.logger.Info("Removed federated server", "server", id)
	return nil
}

// ConnectServer dials the server's configured endpoint and wires its
// inbound stream into HandleIncoming. Connecting an already-connected
// or already-connecting server is a no-op returning success. On dial
// failure the server lands in StatusError with the reason recorded.
func (m *Manager) ConnectServer(ctx context.Context, id string) error {
	m.mu.Lock()
	st, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return errors.WrapInvalid(fmt.Errorf("server %q: %w", id, errors.ErrServerNotFound),
			"federation", "ConnectServer", "server lookup")
	}
	if st.def.Status == StatusConnected || st.def.Status == StatusConnecting {
		m.mu.Unlock()
		return nil
	}
	st.def.Status = StatusConnecting
	st.def.LastError = ""
	cfg := st.def.Config
	m.mu.Unlock()

	// The dial happens outside the lock; other servers keep flowing
	// while the handshake is pending.
	conn, err := m.dialer.Dial(ctx, cfg)

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok = m.servers[id]
	if !ok || st.def.Status != StatusConnecting {
		// Removed or disconnected while the dial was in flight.
		if err == nil {
			conn.Close()
		}
		return nil
	}

	if err != nil {
		st.def.Status = StatusError
		st.def.LastError = err.Error()
		m.metrics.recordConnectFailure()
		m.updateServerGaugesLocked()
		m.logger.Warn("Connect to federated server failed", "server", id, "address", cfg.Address(), "error", err)
		return errors.WrapTransient(err, "federation", "ConnectServer", "dial "+cfg.Address())
	}

	st.conn = conn
	st.def.ConnectionID = uuid.New().String()
	st.def.Status = StatusConnected
	st.def.LastError = ""
	conn.OnMessage(func(payload []byte) {
		m.HandleIncoming(id, payload)
	})
	m.updateServerGaugesLocked()
	m.logger.Info("Connected to federated server",
		"server", id, "address", cfg.Address(), "connection_id", st.def.ConnectionID)
	return nil
}

// DisconnectServer tears down the server's connection. The status flips
// to disconnected before the inbound callback is cleared, so a message
// already in the dispatch goroutine is dropped by HandleIncoming's
// status check rather than processed post-disconnect.
func (m *Manager) DisconnectServer(id string) error {
	m.mu.Lock()
	st, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return errors.WrapInvalid(fmt.Errorf("server %q: %w", id, errors.ErrServerNotFound),
			"federation", "DisconnectServer", "server lookup")
	}
	conn := st.conn
	st.conn = nil
	st.def.ConnectionID = ""
	st.def.Status = StatusDisconnected
	m.updateServerGaugesLocked()
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	conn.OnMessage(nil)
	if err := conn.Close(); err != nil {
		return errors.WrapTransient(err, "federation", "DisconnectServer", "close connection")
	}
	m.logger.Info("Disconnected from federated server", "server", id)
	return nil
}

// HandleIncoming processes one raw payload received from serverID:
// parse, receive-policy check, cache upsert, subscriber notification,
// and (for auto-share sources) fan-out. Parse and policy failures drop
// the payload; nothing propagates back to the transport.
func (m *Manager) HandleIncoming(serverID string, payload []byte) {
	m.metrics.recordReceived(serverID)

	m.mu.RLock()
	st, ok := m.servers[serverID]
	var (
		name      string
		policy    Policy
		connected bool
	)
	if ok {
		name = st.def.Name
		policy = st.def.Policy
		connected = st.def.Status == StatusConnected
	}
	m.mu.RUnlock()

	if !ok || !connected {
		m.metrics.recordDropped("not_connected")
		return
	}
	if len(payload) > m.cfg.MaxEventSize {
		m.metrics.recordDropped("too_large")
		m.logger.Warn("Dropping oversized payload", "server", serverID, "bytes", len(payload))
		return
	}

	ev, err := cot.Parse(payload)
	if err != nil {
		m.metrics.recordDropped("parse_error")
		m.logger.Debug("Dropping unparsable payload", "server", serverID, "error", err)
		return
	}

	dataType := ClassifyDataType(ev.Type)
	if !policy.ShouldReceive(dataType) {
		m.metrics.recordDropped("receive_policy")
		m.logger.Debug("Receive policy rejected event",
			"server", serverID, "uid", ev.UID, "type", ev.Type, "data_type", string(dataType))
		return
	}

	// Direct callers may reuse the payload buffer after this returns;
	// the cache holds the bytes for the retention window.
	raw := make([]byte, len(payload))
	copy(raw, payload)

	now := time.Now().UTC()
	m.cache.Upsert(ev.UID, ev, raw, serverID, name, now)
	m.metrics.setCacheEntries(m.cache.Len())
	m.metrics.recordAccepted(serverID)

	m.bus.Publish(Inbound{
		ServerID:   serverID,
		ServerName: name,
		Event:      ev,
		Classified: router.Classify(ev),
		ReceivedAt: now,
	})

	if policy.AutoShare {
		m.fanOut(serverID, ev.UID, ev.Type, raw)
	}
}

// fanOut relays an accepted event to every other eligible server. Each
// target is claimed in the dedup cache before its send is queued, so a
// UID reaches any one server at most once even when two sources report
// it concurrently. A claimed send that later fails is not retried.
func (m *Manager) fanOut(sourceID, uid, eventType string, payload []byte) {
	m.mu.RLock()
	targets := make([]string, 0, len(m.servers))
	for id, st := range m.servers {
		switch {
		case id == sourceID:
			continue
		case st.def.Status != StatusConnected:
			m.metrics.recordFanoutSkipped("not_connected")
			continue
		case !st.def.Policy.Bidirectional:
			m.metrics.recordFanoutSkipped("receive_only")
			continue
		case !st.def.Policy.ShouldSend(eventType):
			m.metrics.recordFanoutSkipped("send_policy")
			continue
		}
		targets = append(targets, id)
	}
	m.mu.RUnlock()

	for _, id := range targets {
		if !m.cache.ClaimShare(uid, id) {
			m.metrics.recordFanoutSkipped("already_shared")
			continue
		}
		if err := m.pool.Submit(sendTask{serverID: id, uid: uid, payload: payload}); err != nil {
			m.metrics.recordFanoutDropped()
			m.logger.Warn("Dropping fan-out send", "server", id, "uid", uid, "error", err)
		}
	}
}

// processSend is the worker pool's task processor: one rate-limited
// write to one server.
func (m *Manager) processSend(ctx context.Context, task sendTask) error {
	m.mu.RLock()
	st, ok := m.servers[task.serverID]
	var (
		conn    transport.Conn
		limiter *rate.Limiter
	)
	if ok {
		conn = st.conn
		limiter = st.limiter
	}
	m.mu.RUnlock()

	if !ok || conn == nil {
		m.metrics.recordFanoutSkipped("not_connected")
		return nil
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if err := conn.Send(task.payload); err != nil {
		m.recordSendError(task.serverID, err)
		return errors.WrapTransient(err, "federation", "processSend", "send to "+task.serverID)
	}
	m.metrics.recordSent(task.serverID)
	return nil
}

func (m *Manager) recordSendError(serverID string, err error) {
	m.metrics.recordSendFailure(serverID)
	m.mu.Lock()
	if st, ok := m.servers[serverID]; ok {
		st.def.LastError = err.Error()
	}
	m.mu.Unlock()
	m.logger.Warn("Send to federated server failed", "server", serverID, "error", err)
}

// Broadcast queues ev for every connected server whose send policy
// allows it and returns how many sends were queued. Explicit sends skip
// the dedup cache: an operator pushing an event expects it to go out
// even if federation already relayed that UID once.
func (m *Manager) Broadcast(ev *cot.Event) (int, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	return m.SendToServers(ev, ids)
}

// SendToServers queues ev for the named servers, skipping targets that
// are not connected or whose policy rejects the type, and returns the
// count queued.
func (m *Manager) SendToServers(ev *cot.Event, serverIDs []string) (int, error) {
	if ev == nil {
		return 0, errors.WrapInvalid(errors.ErrInvalidEvent,
			"federation", "SendToServers", "nil event")
	}
	payload, err := cot.Serialize(ev)
	if err != nil {
		return 0, errors.Wrap(err, "federation", "SendToServers", "serialize event")
	}

	m.mu.RLock()
	targets := make([]string, 0, len(serverIDs))
	for _, id := range serverIDs {
		st, ok := m.servers[id]
		if !ok || st.def.Status != StatusConnected {
			continue
		}
		if !st.def.Policy.ShouldSend(ev.Type) {
			m.metrics.recordFanoutSkipped("send_policy")
			continue
		}
		targets = append(targets, id)
	}
	m.mu.RUnlock()

	queued := 0
	for _, id := range targets {
		if err := m.pool.Submit(sendTask{serverID: id, uid: ev.UID, payload: payload}); err != nil {
			m.metrics.recordFanoutDropped()
			m.logger.Warn("Dropping explicit send", "server", id, "uid", ev.UID, "error", err)
			continue
		}
		queued++
	}
	return queued, nil
}

// Servers returns snapshots of every registered server sorted by ID.
func (m *Manager) Servers() []Server {
	m.mu.RLock()
	out := make([]Server, 0, len(m.servers))
	for _, st := range m.servers {
		out = append(out, st.snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Server returns the snapshot for one server, if registered.
func (m *Manager) Server(id string) (Server, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.servers[id]
	if !ok {
		return Server{}, false
	}
	return st.snapshot(), true
}

// CacheSnapshot returns the dedup cache contents sorted by UID, for
// status surfaces and host-application export.
func (m *Manager) CacheSnapshot() []Entry {
	return m.cache.Snapshot()
}

// CacheSize returns the number of UIDs in the dedup cache.
func (m *Manager) CacheSize() int {
	return m.cache.Len()
}

// Subscribe returns a stream of accepted inbound events. Slow consumers
// drop; see pkg/pubsub.
func (m *Manager) Subscribe() *pubsub.Subscription[Inbound] {
	return m.bus.Subscribe(pubsub.DefaultBuffer)
}

func (m *Manager) updateServerGaugesLocked() {
	connected := 0
	for _, st := range m.servers {
		if st.def.Status == StatusConnected {
			connected++
		}
	}
	m.metrics.setServerCounts(len(m.servers), connected)
}
