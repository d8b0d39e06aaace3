package marker

import (
	"time"

	"github.com/omnitak/takcore/cot"
)

// State is a marker's position in the active → stale → removed lifecycle.
type State string

// Lifecycle states. Removed only appears on the final event for a marker;
// the store never holds a removed marker.
const (
	StateActive  State = "active"
	StateStale   State = "stale"
	StateRemoved State = "removed"
)

// Marker is a long-lived tactical entity keyed by event uid. A marker is
// created by the first position event for a uid and mutated in place by
// every later one; identity never changes across the 2-10 Hz re-broadcast
// stream most TAK clients produce.
type Marker struct {
	UID         string          `json:"uid"`
	Type        string          `json:"type"`
	Callsign    string          `json:"callsign,omitempty"`
	Point       cot.Point       `json:"point"`
	Speed       *float64        `json:"speed,omitempty"`
	Course      *float64        `json:"course,omitempty"`
	Affiliation cot.Affiliation `json:"affiliation"`
	Dimension   cot.Dimension   `json:"dimension"`
	State       State           `json:"state"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	StaleAt     time.Time       `json:"staleAt"`
	Updates     int64           `json:"updates"`
}

// EventKind identifies a store notification.
type EventKind string

// Notification kinds published to subscribers.
const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// RemoveReason says why a marker left the store.
type RemoveReason string

// Removal reasons carried on EventRemoved notifications.
const (
	ReasonExplicit RemoveReason = "explicit"
	ReasonStale    RemoveReason = "stale"
	ReasonCapacity RemoveReason = "capacity"
)

// Event is published on every marker mutation. Updated events carry the
// previous snapshot so subscribers can diff; Removed events carry the
// reason.
type Event struct {
	Kind     EventKind    `json:"kind"`
	Marker   Marker       `json:"marker"`
	Previous *Marker      `json:"previous,omitempty"`
	Reason   RemoveReason `json:"reason,omitempty"`
}

// newMarker derives a fresh marker from a position event. New markers
// always start Active; the sweep reconciles state against the clock.
func newMarker(ev *cot.Event, now time.Time) Marker {
	m := Marker{
		UID:         ev.UID,
		Type:        ev.Type,
		Callsign:    ev.Callsign(),
		Affiliation: cot.TypeAffiliation(ev.Type),
		Dimension:   cot.TypeDimension(ev.Type),
		State:       StateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		StaleAt:     ev.Stale.Time,
		Updates:     1,
	}
	if ev.Point != nil {
		m.Point = *ev.Point
	}
	if tr := trackOf(ev); tr != nil {
		speed, course := tr.Speed, tr.Course
		m.Speed = &speed
		m.Course = &course
	}
	return m
}

// applyEvent mutates m in place from a later event for the same uid.
// Detail-carried fields (callsign, speed, course) keep their last known
// value when the update omits them, since many producers alternate full
// and minimal reports. State is recomputed from the new stale timestamp.
func applyEvent(m *Marker, ev *cot.Event, now time.Time) {
	m.Type = ev.Type
	m.Affiliation = cot.TypeAffiliation(ev.Type)
	m.Dimension = cot.TypeDimension(ev.Type)
	if ev.Point != nil {
		m.Point = *ev.Point
	}
	if cs := ev.Callsign(); cs != "" {
		m.Callsign = cs
	}
	if tr := trackOf(ev); tr != nil {
		speed, course := tr.Speed, tr.Course
		m.Speed = &speed
		m.Course = &course
	}
	m.StaleAt = ev.Stale.Time
	m.UpdatedAt = now
	m.Updates++
	if now.Before(m.StaleAt) {
		m.State = StateActive
	} else {
		m.State = StateStale
	}
}

func trackOf(ev *cot.Event) *cot.Track {
	if ev.Detail == nil {
		return nil
	}
	return ev.Detail.Track
}
