// Package bridge republishes tactical traffic onto NATS as JSON.
// Accepted federation events go out on <prefix>.event.<kind>, marker
// lifecycle changes on <prefix>.marker.<created|updated|removed>, and
// beacon transitions on <prefix>.alert.<raised|cleared>. Backends
// subscribe with ordinary NATS wildcards; the bridge only publishes.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnitak/takcore/alert"
	"github.com/omnitak/takcore/component"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/federation"
	"github.com/omnitak/takcore/marker"
	"github.com/omnitak/takcore/metric"
	"github.com/omnitak/takcore/pkg/pubsub"
	"github.com/omnitak/takcore/router"
)

// Publisher is the slice of the NATS client the bridge publishes
// through.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	IsHealthy() bool
}

// EventSource yields accepted inbound federation traffic.
type EventSource interface {
	Subscribe() *pubsub.Subscription[federation.Inbound]
}

// MarkerSource yields marker lifecycle events.
type MarkerSource interface {
	Subscribe() *pubsub.Subscription[marker.Event]
}

// AlertSource yields emergency beacon lifecycle events.
type AlertSource interface {
	Subscribe() *pubsub.Subscription[alert.Event]
}

// EventRecord is the JSON envelope published for each accepted
// federation event. At most one typed payload is set, matching Kind;
// unknown kinds carry the identity fields only.
type EventRecord struct {
	ServerID   string    `json:"serverId"`
	ServerName string    `json:"serverName,omitempty"`
	Kind       string    `json:"kind"`
	UID        string    `json:"uid"`
	Type       string    `json:"type"`
	ReceivedAt time.Time `json:"receivedAt"`

	Position *router.PositionUpdate `json:"position,omitempty"`
	Chat     *router.ChatMessage    `json:"chat,omitempty"`
	Alert    *router.EmergencyAlert `json:"alert,omitempty"`
	Waypoint *router.Waypoint       `json:"waypoint,omitempty"`
}

// Config tunes subject naming and publish behavior.
type Config struct {
	// SubjectPrefix is the first token of every published subject.
	// Dots are allowed for multi-token prefixes ("tak.site4").
	SubjectPrefix string `json:"subjectPrefix"`
	// PublishTimeout bounds each NATS publish.
	PublishTimeout time.Duration `json:"publishTimeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SubjectPrefix:  "tak",
		PublishTimeout: 5 * time.Second,
	}
}

// Validate implements config validation for the bridge.
func (c Config) Validate() error {
	if c.SubjectPrefix == "" {
		return errors.WrapInvalid(fmt.Errorf("subjectPrefix must not be empty"),
			"bridge", "Validate", "prefix validation")
	}
	if strings.ContainsAny(c.SubjectPrefix, " \t*>") {
		return errors.WrapInvalid(fmt.Errorf("subjectPrefix %q contains reserved characters", c.SubjectPrefix),
			"bridge", "Validate", "prefix validation")
	}
	if strings.HasPrefix(c.SubjectPrefix, ".") || strings.HasSuffix(c.SubjectPrefix, ".") {
		return errors.WrapInvalid(fmt.Errorf("subjectPrefix %q must not start or end with a dot", c.SubjectPrefix),
			"bridge", "Validate", "prefix validation")
	}
	if c.PublishTimeout <= 0 {
		return errors.WrapInvalid(fmt.Errorf("publishTimeout %v must be positive", c.PublishTimeout),
			"bridge", "Validate", "timeout validation")
	}
	return nil
}

// Deps holds runtime dependencies for the bridge. Sources left nil are
// simply not relayed.
type Deps struct {
	Config          Config
	Publisher       Publisher
	Events          EventSource
	Markers         MarkerSource
	Alerts          AlertSource
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Bridge fans tactical streams out to NATS. Safe for concurrent use.
type Bridge struct {
	cfg       Config
	logger    *slog.Logger
	publisher Publisher

	events  EventSource
	markers MarkerSource
	alerts  AlertSource

	mu        sync.Mutex
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time

	published atomic.Int64
	failed    atomic.Int64
	lastErr   atomic.Value // string

	metrics *Metrics
}

// New creates a bridge. Zero-valued config fields fall back to
// defaults.
func New(deps Deps) *Bridge {
	cfg := deps.Config
	def := DefaultConfig()
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = def.SubjectPrefix
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "bridge")
	}

	return &Bridge{
		cfg:       cfg,
		logger:    logger,
		publisher: deps.Publisher,
		events:    deps.Events,
		markers:   deps.Markers,
		alerts:    deps.Alerts,
		metrics:   newMetrics(deps.MetricsRegistry),
	}
}

// Initialize validates configuration and dependencies before Start.
func (b *Bridge) Initialize() error {
	if err := b.cfg.Validate(); err != nil {
		return errors.Wrap(err, "bridge", "Initialize", "config validation")
	}
	if b.publisher == nil {
		return errors.WrapInvalid(fmt.Errorf("publisher is required"),
			"bridge", "Initialize", "dependency check")
	}
	return nil
}

// Start attaches to the configured sources and launches the relay.
// Subscriptions are live when Start returns.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running.Load() {
		return nil
	}

	var (
		eventSub  *pubsub.Subscription[federation.Inbound]
		markerSub *pubsub.Subscription[marker.Event]
		alertSub  *pubsub.Subscription[alert.Event]
	)
	if b.events != nil {
		eventSub = b.events.Subscribe()
	}
	if b.markers != nil {
		markerSub = b.markers.Subscribe()
	}
	if b.alerts != nil {
		alertSub = b.alerts.Subscribe()
	}

	shutdown := make(chan struct{})
	done := make(chan struct{})
	b.shutdown = shutdown
	b.done = done
	b.startTime = time.Now()
	b.running.Store(true)

	go b.relay(ctx, shutdown, done, eventSub, markerSub, alertSub)
	return nil
}

// Stop halts the relay and detaches from the sources. The bridge is
// restartable after Stop.
func (b *Bridge) Stop(timeout time.Duration) error {
	if !b.running.Load() {
		return nil
	}
	b.running.Store(false)

	b.mu.Lock()
	if b.shutdown != nil {
		select {
		case <-b.shutdown:
		default:
			close(b.shutdown)
		}
	}
	done := b.done
	b.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"bridge", "Stop", "graceful shutdown")
	}
}

func (b *Bridge) relay(ctx context.Context, shutdown <-chan struct{}, done chan<- struct{},
	eventSub *pubsub.Subscription[federation.Inbound],
	markerSub *pubsub.Subscription[marker.Event],
	alertSub *pubsub.Subscription[alert.Event],
) {
	defer close(done)

	var (
		eventCh  <-chan federation.Inbound
		markerCh <-chan marker.Event
		alertCh  <-chan alert.Event
	)
	if eventSub != nil {
		defer eventSub.Unsubscribe()
		eventCh = eventSub.C()
	}
	if markerSub != nil {
		defer markerSub.Unsubscribe()
		markerCh = markerSub.C()
	}
	if alertSub != nil {
		defer alertSub.Unsubscribe()
		alertCh = alertSub.C()
	}

	b.logger.Info("relay started",
		"prefix", b.cfg.SubjectPrefix,
		"federation", eventCh != nil,
		"markers", markerCh != nil,
		"alerts", alertCh != nil)

	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			return
		case in, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			b.publishEvent(ctx, in)
		case ev, ok := <-markerCh:
			if !ok {
				markerCh = nil
				continue
			}
			b.publish(ctx, "marker", string(ev.Kind), ev)
		case ev, ok := <-alertCh:
			if !ok {
				alertCh = nil
				continue
			}
			b.publishAlert(ctx, ev)
		}
	}
}

func (b *Bridge) publishEvent(ctx context.Context, in federation.Inbound) {
	if in.Event == nil {
		return
	}
	rec := EventRecord{
		ServerID:   in.ServerID,
		ServerName: in.ServerName,
		Kind:       in.Classified.Kind.String(),
		UID:        in.Event.UID,
		Type:       in.Event.Type,
		ReceivedAt: in.ReceivedAt,
		Position:   in.Classified.Position,
		Chat:       in.Classified.Chat,
		Alert:      in.Classified.Alert,
		Waypoint:   in.Classified.Waypoint,
	}
	b.publish(ctx, "event", rec.Kind, rec)
}

func (b *Bridge) publishAlert(ctx context.Context, ev alert.Event) {
	// Beacons refresh every few seconds per unit. Only the raise and
	// the clear are relayed.
	if ev.Kind == alert.EventUpdated {
		return
	}
	b.publish(ctx, "alert", string(ev.Kind), ev)
}

func (b *Bridge) publish(ctx context.Context, stream, kind string, payload any) {
	subject := b.cfg.SubjectPrefix + "." + stream + "." + kind

	data, err := json.Marshal(payload)
	if err != nil {
		b.recordFailure(stream, subject, "payload marshal failed", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, b.cfg.PublishTimeout)
	defer cancel()

	if err := b.publisher.Publish(pubCtx, subject, data); err != nil {
		b.recordFailure(stream, subject, "publish failed", err)
		return
	}

	b.published.Add(1)
	b.metrics.recordPublished(stream)
}

func (b *Bridge) recordFailure(stream, subject, msg string, err error) {
	b.failed.Add(1)
	b.lastErr.Store(err.Error())
	b.metrics.recordFailed(stream)
	b.logger.Warn(msg, "subject", subject, "error", err)
}

// Stats is a point-in-time bridge summary.
type Stats struct {
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}

// Stats returns publish totals since creation.
func (b *Bridge) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Failed:    b.failed.Load(),
	}
}

// Health reports bridge liveness: running with a healthy NATS
// connection underneath.
func (b *Bridge) Health() component.HealthStatus {
	b.mu.Lock()
	startTime := b.startTime
	b.mu.Unlock()

	running := b.running.Load()
	healthy := running && b.publisher != nil && b.publisher.IsHealthy()

	var lastError string
	if v := b.lastErr.Load(); v != nil {
		lastError = v.(string)
	}

	var uptime time.Duration
	if running && !startTime.IsZero() {
		uptime = time.Since(startTime)
	}

	return component.HealthStatus{
		Healthy:    healthy,
		LastCheck:  time.Now(),
		ErrorCount: int(b.failed.Load()),
		LastError:  lastError,
		Uptime:     uptime,
	}
}
