/*
Package chat contains the real-time core: presence tracking, room membership,
the connection hub, and the message ingest pipeline.

This file defines the Rooms table: per-chat broadcast groups of live
connections. Membership is a non-persistent projection of which connections
have joined; after a restart rooms rebuild themselves as clients reconnect
and rejoin, so no durable room state exists anywhere.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"chatwire/internal/pkg/logx"
)

// Rooms maps chat identifiers to the set of connections subscribed to them.
// A single lock serializes every join/leave/drop, so membership reads during
// broadcast can never observe a half-applied change.
type Rooms struct {
	mu sync.RWMutex

	// members indexes connections by chat.
	members map[int64]map[*Client]struct{}

	// joined indexes chats by connection, for implicit leave-all on disconnect.
	joined map[*Client]map[int64]struct{}

	logger zerolog.Logger
}

// NewRooms returns an empty room membership table.
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[int64]map[*Client]struct{}),
		joined:  make(map[*Client]map[int64]struct{}),
		logger:  logx.Logger().With().Str("component", "Rooms").Logger(),
	}
}

// Join adds the connection to the chat's broadcast group. Callers must have
// re-validated participation against durable storage first; Rooms itself holds
// no authorization state.
func (rs *Rooms) Join(c *Client, chatID int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.members[chatID] == nil {
		rs.members[chatID] = make(map[*Client]struct{})
	}
	rs.members[chatID][c] = struct{}{}

	if rs.joined[c] == nil {
		rs.joined[c] = make(map[int64]struct{})
	}
	rs.joined[c][chatID] = struct{}{}
}

// Leave removes the connection from the chat's broadcast group. Idempotent.
func (rs *Rooms) Leave(c *Client, chatID int64) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.remove(c, chatID)
}

// DropConn removes the connection from every room it joined. Called once when
// the transport session ends.
func (rs *Rooms) DropConn(c *Client) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for chatID := range rs.joined[c] {
		rs.remove(c, chatID)
	}
}

// remove deletes one membership edge. Caller holds the write lock.
func (rs *Rooms) remove(c *Client, chatID int64) {
	if set, ok := rs.members[chatID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(rs.members, chatID)
		}
	}

	if set, ok := rs.joined[c]; ok {
		delete(set, chatID)
		if len(set) == 0 {
			delete(rs.joined, c)
		}
	}
}

// Contains reports whether the connection is currently a member of the room.
func (rs *Rooms) Contains(c *Client, chatID int64) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	_, ok := rs.members[chatID][c]
	return ok
}

// Broadcast fans a prepared frame out to every member of the chat's room.
// Delivery is fire-and-forget: a member whose send queue is full has the frame
// dropped rather than stalling the remaining members.
func (rs *Rooms) Broadcast(chatID int64, frame []byte) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	for c := range rs.members[chatID] {
		if !c.trySend(frame) {
			rs.logger.Warn().
				Int64("chat_id", chatID).
				Int64("user_id", c.userID).
				Msg("Member send queue full, dropping room frame.")
		}
	}
}
