package router

import (
	"time"

	"github.com/omnitak/takcore/cot"
)

// PositionUpdate is the typed payload of a live-entity event. Everything
// beyond identity and location is best-effort: absent detail elements leave
// zero values.
type PositionUpdate struct {
	UID         string          `json:"uid"`
	Type        string          `json:"type"`
	Callsign    string          `json:"callsign,omitempty"`
	Affiliation cot.Affiliation `json:"affiliation"`
	Dimension   cot.Dimension   `json:"dimension"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	HAE         float64         `json:"hae"`
	Speed       float64         `json:"speed,omitempty"`
	Course      float64         `json:"course,omitempty"`
	HasTrack    bool            `json:"hasTrack,omitempty"`
	Battery     int             `json:"battery,omitempty"`
	Team        string          `json:"team,omitempty"`
	Role        string          `json:"role,omitempty"`
	Time        time.Time       `json:"time"`
	Stale       time.Time       `json:"stale"`
}

func parsePosition(ev *cot.Event) *PositionUpdate {
	p := &PositionUpdate{
		UID:         ev.UID,
		Type:        ev.Type,
		Callsign:    ev.Callsign(),
		Affiliation: cot.TypeAffiliation(ev.Type),
		Dimension:   cot.TypeDimension(ev.Type),
		Lat:         ev.Point.Lat,
		Lon:         ev.Point.Lon,
		HAE:         ev.Point.HAE,
		Time:        ev.Time.Time,
		Stale:       ev.Stale.Time,
	}
	if ev.Detail == nil {
		return p
	}
	if tr := ev.Detail.Track; tr != nil {
		p.Speed = tr.Speed
		p.Course = tr.Course
		p.HasTrack = true
	}
	if st := ev.Detail.Status; st != nil {
		p.Battery = st.Battery
	}
	if g := ev.Detail.Group; g != nil {
		p.Team = g.Name
		p.Role = g.Role
	}
	return p
}

// ChatMessage is the typed payload of a GeoChat event.
type ChatMessage struct {
	MessageID string    `json:"messageId"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	SenderUID string    `json:"senderUid,omitempty"`
	Text      string    `json:"text"`
	Dest      []string  `json:"dest,omitempty"`
	Time      time.Time `json:"time"`
}

// parseChat returns nil when the event lacks the __chat metadata element;
// the caller downgrades such events to Unknown.
func parseChat(ev *cot.Event) *ChatMessage {
	if ev.Detail == nil || ev.Detail.Chat == nil {
		return nil
	}
	chat := ev.Detail.Chat

	msg := &ChatMessage{
		MessageID: chat.MessageID,
		Room:      chat.Chatroom,
		Sender:    chat.SenderCallsign,
		Dest:      ev.Detail.DestCallsigns(),
		Time:      ev.Time.Time,
	}
	if msg.MessageID == "" {
		msg.MessageID = ev.UID
	}
	if msg.Room == "" {
		msg.Room = chat.ID
	}
	if chat.ChatGrp != nil {
		msg.SenderUID = chat.ChatGrp.UID0
	}
	if r := ev.Detail.Remarks; r != nil {
		msg.Text = r.Text
		if msg.Sender == "" {
			msg.Sender = r.Source
		}
	}
	return msg
}

// EmergencyAlert is the typed payload of an emergency beacon. Cancel marks
// the withdrawal type; SenderUID identifies the beacon owner so a cancel can
// be matched to its raise.
type EmergencyAlert struct {
	UID       string    `json:"uid"`
	SenderUID string    `json:"senderUid,omitempty"`
	AlertType string    `json:"alertType"`
	Cancel    bool      `json:"cancel"`
	Callsign  string    `json:"callsign,omitempty"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Time      time.Time `json:"time"`
	Stale     time.Time `json:"stale"`
}

func parseAlert(ev *cot.Event) *EmergencyAlert {
	a := &EmergencyAlert{
		UID:       ev.UID,
		AlertType: ev.Type,
		Cancel:    ev.Type == cot.TypeAlertCancel,
		Callsign:  ev.Callsign(),
		Lat:       ev.Point.Lat,
		Lon:       ev.Point.Lon,
		Time:      ev.Time.Time,
		Stale:     ev.Stale.Time,
	}
	if ev.Detail != nil {
		if em := ev.Detail.Emergency; em != nil {
			if em.Cancel {
				a.Cancel = true
			}
			if a.Callsign == "" {
				a.Callsign = em.Callsign
			}
		}
		// The beacon links back to its owner's uid.
		for _, l := range ev.Detail.Links {
			if l.UID != "" {
				a.SenderUID = l.UID
				break
			}
		}
	}
	if a.SenderUID == "" {
		a.SenderUID = ev.UID
	}
	return a
}

// Waypoint is the typed payload of a dropped map point.
type Waypoint struct {
	UID   string    `json:"uid"`
	Name  string    `json:"name,omitempty"`
	Lat   float64   `json:"lat"`
	Lon   float64   `json:"lon"`
	HAE   float64   `json:"hae"`
	Stale time.Time `json:"stale"`
}

func parseWaypoint(ev *cot.Event) *Waypoint {
	return &Waypoint{
		UID:   ev.UID,
		Name:  ev.Callsign(),
		Lat:   ev.Point.Lat,
		Lon:   ev.Point.Lon,
		HAE:   ev.Point.HAE,
		Stale: ev.Stale.Time,
	}
}
