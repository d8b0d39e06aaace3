// Package chat tracks GeoChat conversations: bounded per-room history,
// duplicate suppression, and composition of outgoing messages. The
// manager consumes parsed chat payloads from the routing layer and
// never touches the wire itself.
package chat

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/omnitak/takcore/cot"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/metric"
	"github.com/omnitak/takcore/pkg/buffer"
	"github.com/omnitak/takcore/pkg/pubsub"
	"github.com/omnitak/takcore/router"
)

// RoomAllChat is the broadcast room every TAK client is a member of.
const RoomAllChat = "All Chat Rooms"

// EventKind labels a chat notification.
type EventKind string

// Notification kinds published on the manager's event stream.
const (
	EventMessage     EventKind = "message"
	EventRoomCreated EventKind = "room-created"
)

// Event is one chat notification.
type Event struct {
	Kind    EventKind           `json:"kind"`
	Room    string              `json:"room"`
	Message *router.ChatMessage `json:"message,omitempty"`
}

// Room is a conversation snapshot for status surfaces.
type Room struct {
	Name         string    `json:"name"`
	Messages     int       `json:"messages"`
	LastActivity time.Time `json:"lastActivity"`
}

// Config tunes identity and retention.
type Config struct {
	// SelfUID and SelfCallsign identify composed messages. Defaults are
	// generated when unset.
	SelfUID      string `json:"selfUid"`
	SelfCallsign string `json:"selfCallsign"`
	// RoomHistory caps retained messages per room.
	RoomHistory int `json:"roomHistory"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{RoomHistory: 200}
}

// Validate implements config validation for the manager.
func (c Config) Validate() error {
	if c.RoomHistory <= 0 {
		return errors.WrapInvalid(fmt.Errorf("roomHistory %d must be positive", c.RoomHistory),
			"chat", "Validate", "history validation")
	}
	return nil
}

// ManagerDeps holds runtime dependencies for the chat manager.
type ManagerDeps struct {
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// room pairs a history window with the ids still inside it, so a resent
// message is recognized for as long as the original is retained.
type room struct {
	history      *buffer.Ring[*router.ChatMessage]
	seen         map[string]struct{}
	lastActivity time.Time
}

// Manager owns conversation state. All mutation goes through Handle and
// Compose; safe for concurrent use.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[string]*room

	bus *pubsub.Bus[Event]

	handled    atomic.Int64
	duplicates atomic.Int64
	composed   atomic.Int64
	dropped    atomic.Int64

	metrics *Metrics
}

// NewManager creates a chat manager. Zero-valued config fields fall back
// to defaults; a missing self identity is generated.
func NewManager(deps ManagerDeps) *Manager {
	cfg := deps.Config
	if cfg.RoomHistory == 0 {
		cfg.RoomHistory = DefaultConfig().RoomHistory
	}
	if cfg.SelfUID == "" {
		cfg.SelfUID = "takcore-" + uuid.New().String()[:8]
	}
	if cfg.SelfCallsign == "" {
		cfg.SelfCallsign = "OMNITAK"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "chat")
	}

	return &Manager{
		cfg:     cfg,
		logger:  logger,
		rooms:   make(map[string]*room),
		bus:     pubsub.NewBus[Event](),
		metrics: newMetrics(deps.MetricsRegistry),
	}
}

// Initialize validates configuration.
func (m *Manager) Initialize() error {
	if err := m.cfg.Validate(); err != nil {
		return errors.Wrap(err, "chat", "Initialize", "config validation")
	}
	return nil
}

// Close ends subscriber streams. The manager keeps answering queries
// after Close; only notifications stop.
func (m *Manager) Close() error {
	m.bus.Close()
	return nil
}

// Handle records an inbound chat message. Duplicates (by message id,
// within the room's retention window) are dropped silently. Returns the
// room the message landed in.
func (m *Manager) Handle(msg *router.ChatMessage) (string, error) {
	if msg == nil {
		return "", errors.WrapInvalid(errors.ErrInvalidEvent, "chat", "Handle", "nil message")
	}

	name := msg.Room
	if name == "" {
		name = RoomAllChat
	}

	var events []Event

	m.mu.Lock()
	rm, ok := m.rooms[name]
	if !ok {
		var err error
		rm, err = m.newRoomLocked()
		if err != nil {
			m.mu.Unlock()
			return "", errors.Wrap(err, "chat", "Handle", "room creation")
		}
		m.rooms[name] = rm
		events = append(events, Event{Kind: EventRoomCreated, Room: name})
		m.metrics.setRooms(len(m.rooms))
	}

	if msg.MessageID != "" {
		if _, dup := rm.seen[msg.MessageID]; dup {
			m.mu.Unlock()
			m.duplicates.Add(1)
			m.metrics.recordDuplicate()
			m.logger.Debug("Duplicate chat message", "room", name, "messageId", msg.MessageID)
			return name, nil
		}
		rm.seen[msg.MessageID] = struct{}{}
	}

	rm.history.Append(msg)
	rm.lastActivity = msg.Time
	if rm.lastActivity.IsZero() {
		rm.lastActivity = time.Now().UTC()
	}
	m.mu.Unlock()

	m.handled.Add(1)
	m.metrics.recordMessage()
	events = append(events, Event{Kind: EventMessage, Room: name, Message: msg})
	for _, ev := range events {
		m.bus.Publish(ev)
	}
	return name, nil
}

// newRoomLocked builds a room whose ring evicts ids from the seen set as
// messages age out, keeping dedup memory proportional to the history.
func (m *Manager) newRoomLocked() (*room, error) {
	rm := &room{seen: make(map[string]struct{})}
	ring, err := buffer.NewRing(m.cfg.RoomHistory,
		buffer.WithDropCallback(func(old *router.ChatMessage) {
			if old.MessageID != "" {
				delete(rm.seen, old.MessageID)
			}
			m.dropped.Add(1)
			m.metrics.recordHistoryDrop()
		}))
	if err != nil {
		return nil, err
	}
	rm.history = ring
	return rm, nil
}

// Compose builds an outgoing GeoChat event addressed to room, or to a
// single callsign when to is non-empty. The message is recorded locally,
// so a server echo deduplicates instead of double-appearing.
func (m *Manager) Compose(roomName, to, text string) (*cot.Event, error) {
	if text == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidEvent, "chat", "Compose", "empty message text")
	}
	if roomName == "" {
		roomName = RoomAllChat
	}

	ev := cot.NewChatEvent(m.cfg.SelfUID, m.cfg.SelfCallsign, roomName, text)
	if to != "" {
		ev.Detail.Marti = &cot.Marti{Dest: []cot.MartiDest{{Callsign: to}}}
	}

	msg := &router.ChatMessage{
		MessageID: ev.Detail.Chat.MessageID,
		Room:      roomName,
		Sender:    m.cfg.SelfCallsign,
		SenderUID: m.cfg.SelfUID,
		Text:      text,
		Time:      ev.Time.Time,
	}
	if to != "" {
		msg.Dest = []string{to}
	}
	if _, err := m.Handle(msg); err != nil {
		return nil, errors.Wrap(err, "chat", "Compose", "local record")
	}

	m.composed.Add(1)
	m.metrics.recordComposed()
	return ev, nil
}

// Rooms lists conversations sorted by name.
func (m *Manager) Rooms() []Room {
	m.mu.Lock()
	out := make([]Room, 0, len(m.rooms))
	for name, rm := range m.rooms {
		out = append(out, Room{
			Name:         name,
			Messages:     rm.history.Len(),
			LastActivity: rm.lastActivity,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// History returns the retained messages for room, oldest first. Unknown
// rooms yield nil.
func (m *Manager) History(roomName string) []*router.ChatMessage {
	m.mu.Lock()
	rm, ok := m.rooms[roomName]
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return rm.history.Items()
}

// Stats is a point-in-time activity summary.
type Stats struct {
	Rooms      int   `json:"rooms"`
	Handled    int64 `json:"handled"`
	Duplicates int64 `json:"duplicates"`
	Composed   int64 `json:"composed"`
	Dropped    int64 `json:"dropped"`
}

// Stats returns cumulative counters and the room count.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	rooms := len(m.rooms)
	m.mu.Unlock()

	return Stats{
		Rooms:      rooms,
		Handled:    m.handled.Load(),
		Duplicates: m.duplicates.Load(),
		Composed:   m.composed.Load(),
		Dropped:    m.dropped.Load(),
	}
}

// Subscribe registers for chat notifications. Slow consumers drop, they
// never block Handle. Call Unsubscribe when done.
func (m *Manager) Subscribe() *pubsub.Subscription[Event] {
	return m.bus.Subscribe(pubsub.DefaultBuffer)
}
