package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConn(userID int64) *Client {
	return &Client{
		userID: userID,
		send:   make(chan []byte, 4),
	}
}

func TestRoomsJoinAndLeave(t *testing.T) {
	rs := NewRooms()
	c := newTestConn(1)

	rs.Join(c, 10)
	assert.True(t, rs.Contains(c, 10))

	// Joining twice is harmless.
	rs.Join(c, 10)
	assert.True(t, rs.Contains(c, 10))

	rs.Leave(c, 10)
	assert.False(t, rs.Contains(c, 10))

	// Leaving again is a no-op.
	rs.Leave(c, 10)
	assert.False(t, rs.Contains(c, 10))
}

func TestRoomsDropConnLeavesEveryRoom(t *testing.T) {
	rs := NewRooms()
	c := newTestConn(1)
	other := newTestConn(2)

	rs.Join(c, 10)
	rs.Join(c, 20)
	rs.Join(other, 10)

	rs.DropConn(c)

	assert.False(t, rs.Contains(c, 10))
	assert.False(t, rs.Contains(c, 20))
	assert.True(t, rs.Contains(other, 10), "dropping one connection must not evict others")
}

func TestRoomsBroadcastReachesOnlyMembers(t *testing.T) {
	rs := NewRooms()
	member := newTestConn(1)
	outsider := newTestConn(2)

	rs.Join(member, 10)
	rs.Join(outsider, 99)

	frame := []byte(`{"type":"new_message"}`)
	rs.Broadcast(10, frame)

	select {
	case got := <-member.send:
		assert.Equal(t, frame, got)
	default:
		t.Fatal("member did not receive the broadcast frame")
	}

	select {
	case <-outsider.send:
		t.Fatal("non-member received a frame")
	default:
	}
}

func TestRoomsBroadcastDropsFramesForFullQueue(t *testing.T) {
	rs := NewRooms()

	stuck := &Client{userID: 1, send: make(chan []byte)} // unbuffered, never drained
	healthy := newTestConn(2)

	rs.Join(stuck, 10)
	rs.Join(healthy, 10)

	rs.Broadcast(10, []byte("a"))
	rs.Broadcast(10, []byte("b"))

	// The healthy member got both frames despite the stuck one.
	require.Len(t, healthy.send, 2)
	assert.Equal(t, []byte("a"), <-healthy.send)
	assert.Equal(t, []byte("b"), <-healthy.send)
}
