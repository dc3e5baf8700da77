package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/pkg/errs"
)

func newTestClient(t *testing.T, hub *Hub, userID int64, store *fakeStore) *Client {
	t.Helper()

	ing := NewIngestor(store, hub.Rooms(), nil)
	return &Client{
		hub:    hub,
		userID: userID,
		store:  store,
		ingest: ing,
		send:   make(chan []byte, 4),
	}
}

func inboundFrame(t *testing.T, eventType EventType, payload any) []byte {
	t.Helper()

	frame, err := EncodeEvent(eventType, payload)
	require.NoError(t, err)
	return frame
}

func TestJoinAsNonParticipantIsSilentNoOp(t *testing.T) {
	hub := NewHub(&recordingLastSeen{})
	defer hub.Shutdown()

	store := &fakeStore{participant: false}
	c := newTestClient(t, hub, 7, store)

	c.handleInbound(inboundFrame(t, EventJoinChat, JoinChatEvent{ChatID: 10}))

	// No membership: a later room broadcast cannot reach this connection.
	assert.False(t, hub.Rooms().Contains(c, 10))
	hub.Rooms().Broadcast(10, []byte("x"))
	assert.Empty(t, c.send, "refused join must produce no events, not even an error")
}

func TestJoinAsParticipantSubscribes(t *testing.T) {
	hub := NewHub(&recordingLastSeen{})
	defer hub.Shutdown()

	store := &fakeStore{participant: true}
	c := newTestClient(t, hub, 7, store)

	c.handleInbound(inboundFrame(t, EventJoinChat, JoinChatEvent{ChatID: 10}))

	require.True(t, hub.Rooms().Contains(c, 10))

	frame := []byte(`{"type":"new_message"}`)
	hub.Rooms().Broadcast(10, frame)
	require.Len(t, c.send, 1)
	assert.Equal(t, frame, <-c.send)
}

func TestJoinParticipantCheckErrorIsSilent(t *testing.T) {
	hub := NewHub(&recordingLastSeen{})
	defer hub.Shutdown()

	store := &fakeStore{participantErr: assert.AnError}
	c := newTestClient(t, hub, 7, store)

	c.handleInbound(inboundFrame(t, EventJoinChat, JoinChatEvent{ChatID: 10}))

	assert.False(t, hub.Rooms().Contains(c, 10))
	assert.Empty(t, c.send)
}

func TestSendAsNonParticipantYieldsErrorEvent(t *testing.T) {
	hub := NewHub(&recordingLastSeen{})
	defer hub.Shutdown()

	store := &fakeStore{participant: false}
	c := newTestClient(t, hub, 7, store)

	c.handleInbound(inboundFrame(t, EventSendMessage, SendMessageEvent{ChatID: 10, Text: "hi"}))

	assert.Empty(t, store.created, "rejected send must not persist anything")

	require.Len(t, c.send, 1)
	var env Envelope
	require.NoError(t, json.Unmarshal(<-c.send, &env))
	require.Equal(t, EventError, env.Type)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, errs.ErrNotParticipant, payload.Code)
}

func TestTrySendAfterCloseDoesNotPanic(t *testing.T) {
	c := newTestConn(1)
	c.closeSend()

	assert.NotPanics(t, func() {
		assert.False(t, c.trySend([]byte("x")))
		c.sendEvent(EventError, ErrorPayload{Code: 1, Message: "late"})
	})

	// Closing again is a no-op.
	assert.NotPanics(t, c.closeSend)
}

func TestRoomBroadcastAfterClientCloseDoesNotPanic(t *testing.T) {
	rs := NewRooms()
	c := newTestConn(1)

	rs.Join(c, 10)
	c.closeSend()

	assert.NotPanics(t, func() {
		rs.Broadcast(10, []byte("x"))
	})
}
