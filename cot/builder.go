package cot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultStale is the validity window for generated events when the caller
// has no better answer.
const DefaultStale = 5 * time.Minute

// NewEvent builds a minimal well-formed event: version 2.0, machine
// provenance, zero point with unknown accuracy, and a validity window of
// stale from now.
func NewEvent(uid, typ string, stale time.Duration) *Event {
	now := Now()
	return &Event{
		Version: Version20,
		UID:     uid,
		Type:    typ,
		Time:    now,
		Start:   now,
		Stale:   At(now.Add(stale)),
		How:     HowMachineGPS,
		Point:   NewPoint(0, 0, 0),
	}
}

// NewPositionEvent builds a live-entity position report. typ must be an atom
// type ("a-..."); callsign rides in the contact element.
func NewPositionEvent(uid, typ, callsign string, lat, lon, hae float64, stale time.Duration) *Event {
	ev := NewEvent(uid, typ, stale)
	ev.Point = NewPoint(lat, lon, hae)
	ev.Detail = &Detail{
		Contact: &Contact{Callsign: callsign},
	}
	return ev
}

// NewSelfReport builds the periodic own-position broadcast: a friendly ground
// unit with team membership and role.
func NewSelfReport(uid, callsign, team, role string, lat, lon, hae float64) *Event {
	ev := NewPositionEvent(uid, "a-f-G-U-C", callsign, lat, lon, hae, DefaultStale)
	ev.Detail.Group = &Group{Name: team, Role: role}
	return ev
}

// NewChatEvent builds a GeoChat message from sender to room. Every call
// produces a unique message id, and the event uid follows the
// "GeoChat.<sender>.<room>.<message>" convention so receivers can
// deduplicate.
func NewChatEvent(senderUID, senderCallsign, room, text string) *Event {
	msgID := uuid.New().String()
	ev := NewEvent(fmt.Sprintf("GeoChat.%s.%s.%s", senderUID, room, msgID), TypeChat, DefaultStale)
	ev.How = HowHumanEntry
	ev.Detail = &Detail{
		Chat: &Chat{
			ID:             room,
			Chatroom:       room,
			SenderCallsign: senderCallsign,
			MessageID:      msgID,
			ChatGrp: &ChatGrp{
				ID:   room,
				UID0: senderUID,
				UID1: room,
			},
		},
		Remarks: &Remarks{
			Source: senderCallsign,
			To:     room,
			Time:   FormatTime(ev.Time.Time),
			Text:   text,
		},
	}
	return ev
}

// NewEmergencyEvent builds an emergency beacon at the sender's position.
// alertType selects the beacon kind; TypeAlert911 is the usual choice.
func NewEmergencyEvent(uid, callsign, alertType string, lat, lon float64) *Event {
	ev := NewEvent(uid+"-9-1-1", alertType, DefaultStale)
	ev.Point = NewPoint(lat, lon, 0)
	ev.Detail = &Detail{
		Contact:   &Contact{Callsign: callsign},
		Emergency: &Emergency{Type: alertType, Callsign: callsign},
		Links:     []*Link{{UID: uid, Type: "a-f-G-U-C", Relation: "p-p"}},
	}
	return ev
}

// NewEmergencyCancelEvent withdraws a previously raised beacon.
func NewEmergencyCancelEvent(uid, callsign string) *Event {
	ev := NewEvent(uid+"-9-1-1", TypeAlertCancel, DefaultStale)
	ev.Detail = &Detail{
		Contact:   &Contact{Callsign: callsign},
		Emergency: &Emergency{Cancel: true, Callsign: callsign},
	}
	return ev
}

// NewWaypointEvent builds a user-dropped map point. Waypoints outlive
// positions, so the window is generous.
func NewWaypointEvent(uid, name string, lat, lon float64) *Event {
	ev := NewEvent(uid, TypeWaypoint, 24*time.Hour)
	ev.How = HowHumanEntry
	ev.Point = NewPoint(lat, lon, 0)
	ev.Detail = &Detail{
		Contact: &Contact{Callsign: name},
	}
	return ev
}

// NewRemoveEvent builds the deletion message for a uid. Receivers that honor
// the convention drop the named marker immediately.
func NewRemoveEvent(targetUID string) *Event {
	ev := NewEvent(uuid.New().String(), TypeRemove, time.Minute)
	ev.Detail = &Detail{
		Links: []*Link{{UID: targetUID, Type: "none", Relation: "none"}},
	}
	return ev
}
