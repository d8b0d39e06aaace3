// Package alert tracks emergency beacons by their owning unit: raised
// on any b-a-o event, refreshed on repeats, cleared by the cancel type
// or by expiry once the beacon stops refreshing. Consumers watch the
// notification stream or poll Active.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/metric"
	"github.com/omnitak/takcore/pkg/buffer"
	"github.com/omnitak/takcore/pkg/pubsub"
	"github.com/omnitak/takcore/router"
)

// Alert is an active beacon snapshot. SenderUID identifies the owning
// unit and is the tracking key; a unit has at most one active beacon.
type Alert struct {
	UID       string    `json:"uid"`
	SenderUID string    `json:"senderUid"`
	Type      string    `json:"type"`
	Callsign  string    `json:"callsign,omitempty"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Raised    time.Time `json:"raised"`
	Updated   time.Time `json:"updated"`
	Stale     time.Time `json:"stale"`
}

// EventKind labels an alert notification.
type EventKind string

// Notification kinds published on the manager's event stream.
const (
	EventRaised  EventKind = "raised"
	EventUpdated EventKind = "updated"
	EventCleared EventKind = "cleared"
)

// ClearReason says why a beacon left the active set.
type ClearReason string

// Clear reasons carried on EventCleared notifications.
const (
	ReasonCancel  ClearReason = "cancel"
	ReasonExpired ClearReason = "expired"
)

// Event is one alert notification.
type Event struct {
	Kind   EventKind   `json:"kind"`
	Alert  Alert       `json:"alert"`
	Reason ClearReason `json:"reason,omitempty"`
}

// Config tunes expiry timing and history retention.
type Config struct {
	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration `json:"sweepInterval"`
	// ExpiryGrace extends a beacon's life past its stale time. Beacons
	// repeat every few seconds; the grace absorbs delivery gaps without
	// dropping a live emergency.
	ExpiryGrace time.Duration `json:"expiryGrace"`
	// RecentHistory caps the retained lifecycle log.
	RecentHistory int `json:"recentHistory"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SweepInterval: 5 * time.Second,
		ExpiryGrace:   30 * time.Second,
		RecentHistory: 100,
	}
}

// Validate implements config validation for the manager.
func (c Config) Validate() error {
	if c.SweepInterval <= 0 {
		return errors.WrapInvalid(fmt.Errorf("sweepInterval %v must be positive", c.SweepInterval),
			"alert", "Validate", "sweep interval validation")
	}
	if c.ExpiryGrace < 0 {
		return errors.WrapInvalid(fmt.Errorf("expiryGrace %v must not be negative", c.ExpiryGrace),
			"alert", "Validate", "grace validation")
	}
	if c.RecentHistory <= 0 {
		return errors.WrapInvalid(fmt.Errorf("recentHistory %d must be positive", c.RecentHistory),
			"alert", "Validate", "history validation")
	}
	return nil
}

// ManagerDeps holds runtime dependencies for the alert manager.
type ManagerDeps struct {
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Manager owns the active beacon set and its lifecycle. Safe for
// concurrent use.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	active map[string]*Alert

	bus    *pubsub.Bus[Event]
	recent *buffer.Ring[Event]

	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool

	raised  atomic.Int64
	cleared atomic.Int64

	metrics *Metrics
}

// NewManager creates an alert manager. Zero-valued config fields fall
// back to defaults.
func NewManager(deps ManagerDeps) *Manager {
	cfg := deps.Config
	def := DefaultConfig()
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.ExpiryGrace == 0 {
		cfg.ExpiryGrace = def.ExpiryGrace
	}
	if cfg.RecentHistory == 0 {
		cfg.RecentHistory = def.RecentHistory
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "alert")
	}

	recent, _ := buffer.NewRing[Event](max(cfg.RecentHistory, 1))

	return &Manager{
		cfg:     cfg,
		logger:  logger,
		active:  make(map[string]*Alert),
		bus:     pubsub.NewBus[Event](),
		recent:  recent,
		metrics: newMetrics(deps.MetricsRegistry),
	}
}

// Initialize validates configuration before Start.
func (m *Manager) Initialize() error {
	if err := m.cfg.Validate(); err != nil {
		return errors.Wrap(err, "alert", "Initialize", "config validation")
	}
	return nil
}

// Start launches the expiry sweep.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.Load() {
		return nil
	}

	m.shutdown = make(chan struct{})
	m.done = make(chan struct{})
	m.running.Store(true)

	go m.sweepLoop(ctx)
	return nil
}

// Stop halts the sweep and closes the event bus, ending subscriber
// streams. The manager is not restartable after Stop.
func (m *Manager) Stop(timeout time.Duration) error {
	if !m.running.Load() {
		return nil
	}
	m.running.Store(false)

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

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"alert", "Stop", "graceful shutdown")
	}
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-ticker.C:
			m.sweep(time.Now().UTC())
		}
	}
}

// Handle applies one parsed emergency payload: a cancel clears the
// sender's beacon, anything else raises or refreshes it.
func (m *Manager) Handle(a *router.EmergencyAlert) error {
	if a == nil {
		return errors.WrapInvalid(errors.ErrInvalidEvent, "alert", "Handle", "nil alert")
	}
	if a.Cancel {
		m.clear(a.SenderUID, ReasonCancel)
		return nil
	}
	m.raise(a)
	return nil
}

func (m *Manager) raise(a *router.EmergencyAlert) {
	now := a.Time
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var ev Event

	m.mu.Lock()
	if cur, ok := m.active[a.SenderUID]; ok {
		cur.UID = a.UID
		cur.Type = a.AlertType
		if a.Callsign != "" {
			cur.Callsign = a.Callsign
		}
		cur.Lat = a.Lat
		cur.Lon = a.Lon
		cur.Updated = now
		cur.Stale = a.Stale
		ev = Event{Kind: EventUpdated, Alert: *cur}
	} else {
		alert := &Alert{
			UID:       a.UID,
			SenderUID: a.SenderUID,
			Type:      a.AlertType,
			Callsign:  a.Callsign,
			Lat:       a.Lat,
			Lon:       a.Lon,
			Raised:    now,
			Updated:   now,
			Stale:     a.Stale,
		}
		m.active[a.SenderUID] = alert
		ev = Event{Kind: EventRaised, Alert: *alert}
	}
	count := len(m.active)
	m.mu.Unlock()

	if ev.Kind == EventRaised {
		m.raised.Add(1)
		m.metrics.recordRaised()
		m.logger.Warn("Emergency raised",
			"sender", a.SenderUID, "callsign", a.Callsign, "type", a.AlertType)
	} else {
		m.metrics.recordUpdated()
	}
	m.metrics.setActive(count)
	m.publish(ev)
}

func (m *Manager) clear(senderUID string, reason ClearReason) {
	m.mu.Lock()
	alert, ok := m.active[senderUID]
	if ok {
		delete(m.active, senderUID)
	}
	count := len(m.active)
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("Cancel for unknown beacon", "sender", senderUID)
		return
	}

	m.cleared.Add(1)
	m.metrics.recordCleared(reason)
	m.metrics.setActive(count)
	m.logger.Info("Emergency cleared",
		"sender", senderUID, "callsign", alert.Callsign, "reason", string(reason))
	m.publish(Event{Kind: EventCleared, Alert: *alert, Reason: reason})
}

// sweep clears beacons whose stale time plus grace has passed. Beacons
// without a stale time never expire; only a cancel clears them.
func (m *Manager) sweep(now time.Time) int {
	var expired []Event

	m.mu.Lock()
	for uid, alert := range m.active {
		if alert.Stale.IsZero() {
			continue
		}
		if now.After(alert.Stale.Add(m.cfg.ExpiryGrace)) {
			delete(m.active, uid)
			expired = append(expired, Event{Kind: EventCleared, Alert: *alert, Reason: ReasonExpired})
		}
	}
	count := len(m.active)
	m.mu.Unlock()

	for _, ev := range expired {
		m.cleared.Add(1)
		m.metrics.recordCleared(ReasonExpired)
		m.logger.Info("Emergency expired",
			"sender", ev.Alert.SenderUID, "callsign", ev.Alert.Callsign)
		m.publish(ev)
	}
	if len(expired) > 0 {
		m.metrics.setActive(count)
	}
	return len(expired)
}

func (m *Manager) publish(ev Event) {
	m.recent.Append(ev)
	m.bus.Publish(ev)
}

// Active lists current beacons, longest-outstanding first.
func (m *Manager) Active() []Alert {
	m.mu.RLock()
	out := make([]Alert, 0, len(m.active))
	for _, alert := range m.active {
		out = append(out, *alert)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Raised.Equal(out[j].Raised) {
			return out[i].Raised.Before(out[j].Raised)
		}
		return out[i].SenderUID < out[j].SenderUID
	})
	return out
}

// Get returns the active beacon for a sender, if any.
func (m *Manager) Get(senderUID string) (Alert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alert, ok := m.active[senderUID]
	if !ok {
		return Alert{}, false
	}
	return *alert, true
}

// Count returns the number of active beacons.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Recent returns the retained lifecycle log, oldest first.
func (m *Manager) Recent() []Event {
	return m.recent.Items()
}

// Stats is a point-in-time activity summary.
type Stats struct {
	Active  int   `json:"active"`
	Raised  int64 `json:"raised"`
	Cleared int64 `json:"cleared"`
}

// Stats returns the active count and cumulative totals.
func (m *Manager) Stats() Stats {
	return Stats{
		Active:  m.Count(),
		Raised:  m.raised.Load(),
		Cleared: m.cleared.Load(),
	}
}

// Subscribe registers for alert notifications. Slow consumers drop, they
// never block Handle. Call Unsubscribe when done.
func (m *Manager) Subscribe() *pubsub.Subscription[Event] {
	return m.bus.Subscribe(pubsub.DefaultBuffer)
}
