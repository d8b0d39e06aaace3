package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnitak/takcore/cot"
	"github.com/omnitak/takcore/errors"
	"github.com/omnitak/takcore/pkg/pubsub"
	"github.com/omnitak/takcore/router"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	m := NewManager(ManagerDeps{Config: cfg})
	require.NoError(t, m.Initialize())
	t.Cleanup(func() { m.Close() })
	return m
}

func chatMsg(id, room, sender, text string) *router.ChatMessage {
	return &router.ChatMessage{
		MessageID: id,
		Room:      room,
		Sender:    sender,
		Text:      text,
		Time:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func nextEvent(t *testing.T, sub *pubsub.Subscription[Event]) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no chat event")
		return Event{}
	}
}

func TestManager_Handle(t *testing.T) {
	m := newTestManager(t, Config{})

	room, err := m.Handle(chatMsg("M1", "Red Team", "ALPHA1", "contact north"))
	require.NoError(t, err)
	assert.Equal(t, "Red Team", room)

	history := m.History("Red Team")
	require.Len(t, history, 1)
	assert.Equal(t, "contact north", history[0].Text)

	rooms := m.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "Red Team", rooms[0].Name)
	assert.Equal(t, 1, rooms[0].Messages)
	assert.Equal(t, history[0].Time, rooms[0].LastActivity)
}

func TestManager_HandleDefaultsRoom(t *testing.T) {
	m := newTestManager(t, Config{})

	room, err := m.Handle(chatMsg("M1", "", "ALPHA1", "hello"))
	require.NoError(t, err)
	assert.Equal(t, RoomAllChat, room)
	assert.Len(t, m.History(RoomAllChat), 1)
}

func TestManager_HandleNil(t *testing.T) {
	m := newTestManager(t, Config{})

	_, err := m.Handle(nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestManager_Dedup(t *testing.T) {
	m := newTestManager(t, Config{})

	_, err := m.Handle(chatMsg("M1", "Red Team", "ALPHA1", "contact north"))
	require.NoError(t, err)
	_, err = m.Handle(chatMsg("M1", "Red Team", "ALPHA1", "contact north"))
	require.NoError(t, err)

	assert.Len(t, m.History("Red Team"), 1)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Handled)
	assert.Equal(t, int64(1), stats.Duplicates)
}

func TestManager_DedupWindowSlides(t *testing.T) {
	m := newTestManager(t, Config{RoomHistory: 2})

	for _, id := range []string{"M1", "M2", "M3"} {
		_, err := m.Handle(chatMsg(id, "ops", "ALPHA1", id))
		require.NoError(t, err)
	}

	// M1 aged out of the window, so a resend is new again.
	_, err := m.Handle(chatMsg("M1", "ops", "ALPHA1", "M1"))
	require.NoError(t, err)

	history := m.History("ops")
	require.Len(t, history, 2)
	assert.Equal(t, "M3", history[0].MessageID)
	assert.Equal(t, "M1", history[1].MessageID)

	stats := m.Stats()
	assert.Equal(t, int64(4), stats.Handled)
	assert.Equal(t, int64(0), stats.Duplicates)
	assert.Equal(t, int64(2), stats.Dropped)
}

func TestManager_Compose(t *testing.T) {
	m := newTestManager(t, Config{SelfUID: "SELF-1", SelfCallsign: "ALPHA"})

	ev, err := m.Compose("", "", "moving to rally point")
	require.NoError(t, err)

	assert.Equal(t, cot.TypeChat, ev.Type)
	assert.Contains(t, ev.UID, "GeoChat.SELF-1."+RoomAllChat+".")
	require.NotNil(t, ev.Detail.Chat)
	assert.Equal(t, RoomAllChat, ev.Detail.Chat.Chatroom)
	assert.Equal(t, "ALPHA", ev.Detail.Chat.SenderCallsign)
	assert.Nil(t, ev.Detail.Marti)

	// The composed message is already in local history.
	history := m.History(RoomAllChat)
	require.Len(t, history, 1)
	assert.Equal(t, "moving to rally point", history[0].Text)
	assert.Equal(t, "SELF-1", history[0].SenderUID)

	// A server echo carries the same message id and deduplicates.
	_, err = m.Handle(&router.ChatMessage{
		MessageID: ev.Detail.Chat.MessageID,
		Room:      RoomAllChat,
		Sender:    "ALPHA",
		Text:      "moving to rally point",
	})
	require.NoError(t, err)
	assert.Len(t, m.History(RoomAllChat), 1)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Composed)
	assert.Equal(t, int64(1), stats.Duplicates)
}

func TestManager_ComposeDirect(t *testing.T) {
	m := newTestManager(t, Config{SelfUID: "SELF-1", SelfCallsign: "ALPHA"})

	ev, err := m.Compose("BRAVO2", "BRAVO2", "rtb")
	require.NoError(t, err)

	require.NotNil(t, ev.Detail.Marti)
	require.Len(t, ev.Detail.Marti.Dest, 1)
	assert.Equal(t, "BRAVO2", ev.Detail.Marti.Dest[0].Callsign)

	history := m.History("BRAVO2")
	require.Len(t, history, 1)
	assert.Equal(t, []string{"BRAVO2"}, history[0].Dest)
}

func TestManager_ComposeEmptyText(t *testing.T) {
	m := newTestManager(t, Config{})

	_, err := m.Compose("ops", "", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestManager_RoomsSorted(t *testing.T) {
	m := newTestManager(t, Config{})

	for i, name := range []string{"zulu", "alpha", "mike"} {
		_, err := m.Handle(chatMsg(fmt.Sprintf("M%d", i), name, "ALPHA1", "x"))
		require.NoError(t, err)
	}

	rooms := m.Rooms()
	require.Len(t, rooms, 3)
	assert.Equal(t, "alpha", rooms[0].Name)
	assert.Equal(t, "mike", rooms[1].Name)
	assert.Equal(t, "zulu", rooms[2].Name)
}

func TestManager_Subscribe(t *testing.T) {
	m := newTestManager(t, Config{})

	sub := m.Subscribe()
	defer sub.Unsubscribe()

	_, err := m.Handle(chatMsg("M1", "Red Team", "ALPHA1", "contact north"))
	require.NoError(t, err)

	created := nextEvent(t, sub)
	assert.Equal(t, EventRoomCreated, created.Kind)
	assert.Equal(t, "Red Team", created.Room)
	assert.Nil(t, created.Message)

	msg := nextEvent(t, sub)
	assert.Equal(t, EventMessage, msg.Kind)
	assert.Equal(t, "Red Team", msg.Room)
	require.NotNil(t, msg.Message)
	assert.Equal(t, "M1", msg.Message.MessageID)

	// Second message in a known room skips the room-created event.
	_, err = m.Handle(chatMsg("M2", "Red Team", "ALPHA1", "say again"))
	require.NoError(t, err)
	next := nextEvent(t, sub)
	assert.Equal(t, EventMessage, next.Kind)
}

func TestManager_HistoryUnknownRoom(t *testing.T) {
	m := newTestManager(t, Config{})
	assert.Nil(t, m.History("nowhere"))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	err := Config{RoomHistory: -1}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
