package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/cot"
)

func TestClassify_RuleOrdering(t *testing.T) {
	tests := []struct {
		typ  string
		want Kind
	}{
		{"a-f-G-E-S", KindPositionUpdate},
		{"a-h-G-U-C", KindPositionUpdate},
		{"a-u-A", KindPositionUpdate},
		{"b-a-o-tbl", KindEmergencyAlert},
		{"b-a-o-c", KindEmergencyAlert},
		{"b-m-p-w", KindWaypoint},
		{"b-m-p-s-p-i", KindWaypoint},
		{"b-m-p-s-p-i-x", KindWaypoint},
		{"b-m-r", KindUnknown},
		{"t-x-d-d", KindUnknown},
		{"x-custom-thing", KindUnknown},
	}

	for _, test := range tests {
		t.Run(test.typ, func(t *testing.T) {
			ev := cot.NewEvent("U1", test.typ, time.Minute)
			c := Classify(ev)
			assert.Equal(t, test.want, c.Kind)
			assert.Equal(t, test.typ, c.RawType)
		})
	}
}

func TestClassify_ChatRequiresMetadata(t *testing.T) {
	// A well-formed chat classifies as chat.
	chat := cot.NewChatEvent("ANDROID-121", "ALPHA1", "All Chat Rooms", "hello")
	c := Classify(chat)
	require.Equal(t, KindChatMessage, c.Kind)
	require.NotNil(t, c.Chat)

	// b-t-f without __chat degrades to Unknown, never an error.
	bare := cot.NewEvent("U1", cot.TypeChat, time.Minute)
	c = Classify(bare)
	assert.Equal(t, KindUnknown, c.Kind)
	assert.Nil(t, c.Chat)
	assert.Equal(t, "b-t-f", c.RawType)
}

func TestClassify_NilEvent(t *testing.T) {
	c := Classify(nil)
	assert.Equal(t, KindUnknown, c.Kind)
}

func TestClassify_PositionPayload(t *testing.T) {
	ev := cot.NewPositionEvent("ANDROID-121", "a-f-G-E-S", "ALPHA1", 34.0522, -118.2437, 89.5, time.Minute)
	ev.Detail.Track = &cot.Track{Speed: 2.5, Course: 271.1}
	ev.Detail.Status = &cot.Status{Battery: 78}
	ev.Detail.Group = &cot.Group{Name: "Cyan", Role: "Team Member"}

	c := Classify(ev)
	require.Equal(t, KindPositionUpdate, c.Kind)
	p := c.Position
	require.NotNil(t, p)

	assert.Equal(t, "ANDROID-121", p.UID)
	assert.Equal(t, "ALPHA1", p.Callsign)
	assert.Equal(t, cot.AffiliationFriendly, p.Affiliation)
	assert.Equal(t, cot.DimensionGround, p.Dimension)
	assert.Equal(t, 34.0522, p.Lat)
	assert.Equal(t, -118.2437, p.Lon)
	assert.True(t, p.HasTrack)
	assert.Equal(t, 2.5, p.Speed)
	assert.Equal(t, 271.1, p.Course)
	assert.Equal(t, 78, p.Battery)
	assert.Equal(t, "Cyan", p.Team)
	assert.Equal(t, "Team Member", p.Role)
}

func TestClassify_PositionWithoutDetail(t *testing.T) {
	ev := cot.NewEvent("U1", "a-h-A-M-F", time.Minute)
	ev.Point = cot.NewPoint(10, 20, 5000)

	c := Classify(ev)
	require.Equal(t, KindPositionUpdate, c.Kind)
	p := c.Position

	assert.Equal(t, cot.AffiliationHostile, p.Affiliation)
	assert.Equal(t, cot.DimensionAir, p.Dimension)
	assert.Empty(t, p.Callsign)
	assert.False(t, p.HasTrack)
}

func TestClassify_ChatPayload(t *testing.T) {
	ev := cot.NewChatEvent("ANDROID-121", "ALPHA1", "Fire Team Bravo", "contact north")

	c := Classify(ev)
	require.Equal(t, KindChatMessage, c.Kind)
	msg := c.Chat

	assert.Equal(t, "Fire Team Bravo", msg.Room)
	assert.Equal(t, "ALPHA1", msg.Sender)
	assert.Equal(t, "ANDROID-121", msg.SenderUID)
	assert.Equal(t, "contact north", msg.Text)
	assert.NotEmpty(t, msg.MessageID)
	assert.Nil(t, msg.Dest, "no marti block means broadcast")
}

func TestClassify_ChatFallbackIDs(t *testing.T) {
	// messageId absent: the event uid is the dedup key.
	raw := `<event version="2.0" uid="GeoChat.A.room.1" type="b-t-f" time="2025-01-15T10:30:00Z" start="2025-01-15T10:30:00Z" stale="2025-01-15T10:35:00Z"><point lat="0" lon="0"/><detail><__chat id="room" senderCallsign="ALPHA1"/><remarks>hi</remarks></detail></event>`
	ev, err := cot.Parse([]byte(raw))
	require.NoError(t, err)

	c := Classify(ev)
	require.Equal(t, KindChatMessage, c.Kind)
	assert.Equal(t, "GeoChat.A.room.1", c.Chat.MessageID)
	assert.Equal(t, "room", c.Chat.Room, "chatroom falls back to chat id")
	assert.Equal(t, "hi", c.Chat.Text)
}

func TestClassify_ChatDest(t *testing.T) {
	ev := cot.NewChatEvent("ANDROID-121", "ALPHA1", "direct", "eyes on")
	ev.Detail.Marti = &cot.Marti{Dest: []cot.MartiDest{{Callsign: "BRAVO2"}}}

	c := Classify(ev)
	require.Equal(t, KindChatMessage, c.Kind)
	assert.Equal(t, []string{"BRAVO2"}, c.Chat.Dest)
}

func TestClassify_AlertPayload(t *testing.T) {
	ev := cot.NewEmergencyEvent("ANDROID-121", "ALPHA1", cot.TypeAlert911, 34.05, -118.24)

	c := Classify(ev)
	require.Equal(t, KindEmergencyAlert, c.Kind)
	a := c.Alert

	assert.Equal(t, cot.TypeAlert911, a.AlertType)
	assert.False(t, a.Cancel)
	assert.Equal(t, "ALPHA1", a.Callsign)
	assert.Equal(t, "ANDROID-121", a.SenderUID, "sender from the beacon's link")
	assert.Equal(t, 34.05, a.Lat)
}

func TestClassify_AlertCancel(t *testing.T) {
	ev := cot.NewEmergencyCancelEvent("ANDROID-121", "ALPHA1")

	c := Classify(ev)
	require.Equal(t, KindEmergencyAlert, c.Kind)
	assert.True(t, c.Alert.Cancel)
}

func TestClassify_AlertWithoutDetail(t *testing.T) {
	// Alerts never fail extraction; missing detail just leaves blanks.
	ev := cot.NewEvent("U1", "b-a-o-pan", time.Minute)

	c := Classify(ev)
	require.Equal(t, KindEmergencyAlert, c.Kind)
	assert.Equal(t, "b-a-o-pan", c.Alert.AlertType)
	assert.Empty(t, c.Alert.Callsign)
	assert.Equal(t, "U1", c.Alert.SenderUID, "falls back to event uid")
}

func TestClassify_WaypointPayload(t *testing.T) {
	ev := cot.NewWaypointEvent("WP-1", "Rally Point 1", 34.1, -118.3)

	c := Classify(ev)
	require.Equal(t, KindWaypoint, c.Kind)
	assert.Equal(t, "Rally Point 1", c.Waypoint.Name)
	assert.Equal(t, 34.1, c.Waypoint.Lat)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "position", KindPositionUpdate.String())
	assert.Equal(t, "chat", KindChatMessage.String())
	assert.Equal(t, "alert", KindEmergencyAlert.String())
	assert.Equal(t, "waypoint", KindWaypoint.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
