// Package router classifies parsed events into processing categories and
// extracts the typed payload each category carries. Classification is a pure
// function over the event's type string; it does no I/O and never fails. A
// message the router cannot place degrades to Unknown rather than halting the
// stream.
package router

import (
	"strings"

	"github.com/omnitak/takcore/cot"
)

// Kind is the processing category of an event.
type Kind int

const (
	// KindUnknown is the fallback for types without a dedicated handler.
	// Unknown events still flow through federation; they just have no
	// typed payload.
	KindUnknown Kind = iota
	// KindPositionUpdate covers every live-entity (atom) event.
	KindPositionUpdate
	// KindChatMessage covers GeoChat traffic.
	KindChatMessage
	// KindEmergencyAlert covers emergency beacons and their cancellations.
	KindEmergencyAlert
	// KindWaypoint covers user-dropped map points and sensor points of
	// interest.
	KindWaypoint
)

// String returns the kind's name for logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindPositionUpdate:
		return "position"
	case KindChatMessage:
		return "chat"
	case KindEmergencyAlert:
		return "alert"
	case KindWaypoint:
		return "waypoint"
	default:
		return "unknown"
	}
}

// Classified is the result of classifying one event: its kind, the original
// event, and exactly one typed payload matching the kind. Unknown events
// carry only the raw type string.
type Classified struct {
	Kind    Kind
	RawType string
	Event   *cot.Event

	Position *PositionUpdate
	Chat     *ChatMessage
	Alert    *EmergencyAlert
	Waypoint *Waypoint
}

// Classify places an event into its processing category. Rules match in
// order, first hit wins:
//
//  1. type prefix "a-"            -> position update
//  2. type exactly "b-t-f"        -> chat message
//  3. type prefix "b-a-"          -> emergency alert
//  4. type "b-m-p-w" or prefix
//     "b-m-p-s-p-i"               -> waypoint
//  5. anything else               -> unknown
//
// A payload extractor that cannot make sense of the detail bag downgrades
// the event to Unknown instead of returning an error.
func Classify(ev *cot.Event) Classified {
	c := Classified{Kind: KindUnknown, Event: ev}
	if ev == nil {
		return c
	}
	c.RawType = ev.Type

	switch {
	case strings.HasPrefix(ev.Type, cot.AtomPrefix):
		c.Kind = KindPositionUpdate
		c.Position = parsePosition(ev)
	case ev.Type == cot.TypeChat:
		chat := parseChat(ev)
		if chat == nil {
			// Chat without __chat metadata is not actionable.
			return c
		}
		c.Kind = KindChatMessage
		c.Chat = chat
	case strings.HasPrefix(ev.Type, cot.AlertPrefix):
		c.Kind = KindEmergencyAlert
		c.Alert = parseAlert(ev)
	case ev.Type == cot.TypeWaypoint || strings.HasPrefix(ev.Type, cot.SensorPointPrefix):
		c.Kind = KindWaypoint
		c.Waypoint = parseWaypoint(ev)
	}
	return c
}
