package marker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omnitak/takcore/cot"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/metric"
	"github.com/omnitak/takcore/pkg/pubsub"
)

// Config tunes store capacity and lifecycle timing.
type Config struct {
	// MaxMarkers caps the live set; inserting past it evicts.
	MaxMarkers int `json:"maxMarkers"`
	// SweepInterval is how often the background sweep reconciles state.
	SweepInterval time.Duration `json:"sweepInterval"`
	// GracePeriod is how long a stale marker survives before removal,
	// absorbing brief reconnect gaps without flicker.
	GracePeriod time.Duration `json:"gracePeriod"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxMarkers:    10000,
		SweepInterval: 5 * time.Second,
		GracePeriod:   60 * time.Second,
	}
}

// Validate implements config validation for the store.
func (c Config) Validate() error {
	if c.MaxMarkers <= 0 {
		return errors.WrapInvalid(fmt.Errorf("maxMarkers %d must be positive", c.MaxMarkers),
			"marker-store", "Validate", "capacity validation")
	}
	if c.SweepInterval <= 0 {
		return errors.WrapInvalid(fmt.Errorf("sweepInterval %v must be positive", c.SweepInterval),
			"marker-store", "Validate", "sweep interval validation")
	}
	if c.GracePeriod < 0 {
		return errors.WrapInvalid(fmt.Errorf("gracePeriod %v must not be negative", c.GracePeriod),
			"marker-store", "Validate", "grace period validation")
	}
	return nil
}

// StoreDeps holds runtime dependencies for the marker store.
type StoreDeps struct {
	Config          Config                  // Business logic configuration
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
}

// entry wraps a marker with the bookkeeping eviction needs. seq is a
// store-wide monotonic counter bumped on every create and update, so the
// lowest seq is the least recently touched entry.
type entry struct {
	marker Marker
	seq    uint64
}

// Store owns marker identity and lifecycle. All mutation goes through
// Ingest, Remove, and the background sweep; callers never touch the map.
// Safe for concurrent use from multiple connection channels.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	markers map[string]*entry
	seq     uint64

	bus *pubsub.Bus[Event]

	// Lifecycle management
	shutdown chan struct{}
	done     chan struct{}
	running  atomic.Bool

	// Counters exposed through Stats and health checks
	ingested atomic.Int64
	evicted  atomic.Int64

	metrics *Metrics
}

// NewStore creates a marker store using the idiomatic constructor pattern.
// Zero-valued config fields fall back to defaults.
func NewStore(deps StoreDeps) *Store {
	cfg := deps.Config
	def := DefaultConfig()
	if cfg.MaxMarkers == 0 {
		cfg.MaxMarkers = def.MaxMarkers
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = def.GracePeriod
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "marker-store")
	}

	return &Store{
		cfg:     cfg,
		logger:  logger,
		markers: make(map[string]*entry),
		bus:     pubsub.NewBus[Event](),
		metrics: newMetrics(deps.MetricsRegistry),
	}
}

// Initialize validates configuration before Start.
func (s *Store) Initialize() error {
	if err := s.cfg.Validate(); err != nil {
		return errors.Wrap(err, "marker-store", "Initialize", "config validation")
	}
	return nil
}

// Start launches the background staleness sweep.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil // Already running, idempotent
	}

	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)

	go s.sweepLoop(ctx)
	return nil
}

// Stop halts the sweep and closes the event bus, ending subscriber
// streams. The store is not restartable after Stop.
func (s *Store) Stop(timeout time.Duration) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	s.mu.Lock()
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
	}
	done := s.done
	s.mu.Unlock()

	defer s.bus.Close()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"marker-store", "Stop", "graceful shutdown")
	}
}

func (s *Store) sweepLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.sweep(time.Now().UTC())
		}
	}
}

// Ingest creates or updates the marker for ev's uid and returns the
// resulting snapshot. Only position (atom) events carry marker semantics;
// anything else is rejected as invalid.
func (s *Store) Ingest(ev *cot.Event) (Marker, error) {
	return s.ingestAt(ev, time.Now().UTC())
}

func (s *Store) ingestAt(ev *cot.Event, now time.Time) (Marker, error) {
	if ev == nil {
		return Marker{}, errors.WrapInvalid(errors.ErrInvalidEvent,
			"marker-store", "Ingest", "nil event")
	}
	if !cot.IsAtom(ev.Type) {
		return Marker{}, errors.WrapInvalid(
			fmt.Errorf("type %q is not a position update: %w", ev.Type, errors.ErrInvalidEvent),
			"marker-store", "Ingest", "event classification")
	}

	var events []Event

	s.mu.Lock()
	m := s.upsertLocked(ev, now, &events)
	live := len(s.markers)
	s.mu.Unlock()

	s.ingested.Add(1)
	if s.metrics != nil {
		s.metrics.eventsIngested.Inc()
		s.metrics.liveMarkers.Set(float64(live))
	}
	s.publish(events)
	return m, nil
}

// upsertLocked performs the create-or-update under s.mu and appends the
// resulting notifications to events for publication after unlock.
func (s *Store) upsertLocked(ev *cot.Event, now time.Time, events *[]Event) Marker {
	if e, ok := s.markers[ev.UID]; ok {
		prev := e.marker
		applyEvent(&e.marker, ev, now)
		s.seq++
		e.seq = s.seq
		*events = append(*events, Event{Kind: EventUpdated, Marker: e.marker, Previous: &prev})
		if s.metrics != nil {
			s.metrics.updated.Inc()
		}
		return e.marker
	}

	if len(s.markers) >= s.cfg.MaxMarkers {
		s.evictLocked(events)
	}

	m := newMarker(ev, now)
	s.seq++
	s.markers[ev.UID] = &entry{marker: m, seq: s.seq}
	*events = append(*events, Event{Kind: EventCreated, Marker: m})
	if s.metrics != nil {
		s.metrics.created.Inc()
	}
	return m
}

// evictLocked drops one marker to make room: the longest-stale entry if
// any marker is stale, otherwise the least recently updated active one.
func (s *Store) evictLocked(events *[]Event) {
	var victim *entry
	for _, e := range s.markers {
		if victim == nil {
			victim = e
			continue
		}
		switch {
		case e.marker.State == StateStale && victim.marker.State != StateStale:
			victim = e
		case e.marker.State == StateStale && victim.marker.State == StateStale:
			if e.marker.StaleAt.Before(victim.marker.StaleAt) {
				victim = e
			}
		case e.marker.State != StateStale && victim.marker.State != StateStale:
			if e.seq < victim.seq {
				victim = e
			}
		}
	}
	if victim == nil {
		return
	}

	delete(s.markers, victim.marker.UID)
	victim.marker.State = StateRemoved
	*events = append(*events, Event{Kind: EventRemoved, Marker: victim.marker, Reason: ReasonCapacity})

	s.evicted.Add(1)
	s.metrics.recordRemoved(ReasonCapacity)
	s.logger.Info("Evicted marker at capacity",
		"uid", victim.marker.UID,
		"state", string(victim.marker.State),
		"max_markers", s.cfg.MaxMarkers)
}

// Remove deletes the marker for uid. Idempotent; reports whether a marker
// existed. The removal notification carries ReasonExplicit.
func (s *Store) Remove(uid string) bool {
	s.mu.Lock()
	e, ok := s.markers[uid]
	if ok {
		delete(s.markers, uid)
		e.marker.State = StateRemoved
	}
	live := len(s.markers)
	s.mu.Unlock()

	if !ok {
		return false
	}

	s.metrics.recordRemoved(ReasonExplicit)
	if s.metrics != nil {
		s.metrics.liveMarkers.Set(float64(live))
	}
	s.publish([]Event{{Kind: EventRemoved, Marker: e.marker, Reason: ReasonExplicit}})
	return true
}

// Get returns the marker for uid, if present.
func (s *Store) Get(uid string) (Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.markers[uid]
	if !ok {
		return Marker{}, false
	}
	return e.marker, true
}

// Count returns the number of live markers.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

// Query returns a fully materialized slice of markers matching f.
// Ordering follows f.Sort; SortNone leaves map iteration order.
func (s *Store) Query(f Filter) []Marker {
	s.mu.RLock()
	out := make([]Marker, 0, len(s.markers))
	for _, e := range s.markers {
		if f.matches(e.marker) {
			out = append(out, e.marker)
		}
	}
	s.mu.RUnlock()

	f.order(out)
	return out
}

// Stats is an on-demand aggregate over the live set. Cardinality stays in
// the hundreds-to-thousands range, so O(n) on request beats maintaining
// the breakdowns incrementally.
type Stats struct {
	Total         int                     `json:"total"`
	Active        int                     `json:"active"`
	Stale         int                     `json:"stale"`
	Ingested      int64                   `json:"ingested"`
	Evicted       int64                   `json:"evicted"`
	ByAffiliation map[cot.Affiliation]int `json:"byAffiliation"`
	ByDimension   map[cot.Dimension]int   `json:"byDimension"`
	ByType        map[string]int          `json:"byType"`
}

// Stats computes the current aggregate.
func (s *Store) Stats() Stats {
	st := Stats{
		Ingested:      s.ingested.Load(),
		Evicted:       s.evicted.Load(),
		ByAffiliation: make(map[cot.Affiliation]int),
		ByDimension:   make(map[cot.Dimension]int),
		ByType:        make(map[string]int),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st.Total = len(s.markers)
	for _, e := range s.markers {
		switch e.marker.State {
		case StateActive:
			st.Active++
		case StateStale:
			st.Stale++
		}
		st.ByAffiliation[e.marker.Affiliation]++
		st.ByDimension[e.marker.Dimension]++
		st.ByType[e.marker.Type]++
	}
	return st
}

// Snapshot returns every live marker sorted by uid, suitable for JSON
// export by the host application.
func (s *Store) Snapshot() []Marker {
	s.mu.RLock()
	out := make([]Marker, 0, len(s.markers))
	for _, e := range s.markers {
		out = append(out, e.marker)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].UID < out[j].UID
	})
	return out
}

// Subscribe registers for marker lifecycle notifications. Slow consumers
// drop, they never block ingestion. Call Unsubscribe when done.
func (s *Store) Subscribe() *pubsub.Subscription[Event] {
	return s.bus.Subscribe(pubsub.DefaultBuffer)
}

// sweep reconciles every marker against the clock: active markers past
// their stale time flip to stale, and stale markers past the grace period
// are removed. Both rules apply in one pass, so a marker whose stale time
// is already older than the grace period goes straight out.
func (s *Store) sweep(now time.Time) {
	start := time.Now()
	var events []Event

	s.mu.Lock()
	for uid, e := range s.markers {
		if e.marker.State == StateActive && now.After(e.marker.StaleAt) {
			prev := e.marker
			e.marker.State = StateStale
			events = append(events, Event{Kind: EventUpdated, Marker: e.marker, Previous: &prev})
		}
		if e.marker.State == StateStale && now.Sub(e.marker.StaleAt) > s.cfg.GracePeriod {
			delete(s.markers, uid)
			e.marker.State = StateRemoved
			events = append(events, Event{Kind: EventRemoved, Marker: e.marker, Reason: ReasonStale})
			s.metrics.recordRemoved(ReasonStale)
		}
	}
	live := len(s.markers)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.liveMarkers.Set(float64(live))
		s.metrics.sweepDuration.Observe(time.Since(start).Seconds())
	}
	s.publish(events)
}

func (s *Store) publish(events []Event) {
	for _, ev := range events {
		s.bus.Publish(ev)
	}
}
