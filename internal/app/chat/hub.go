/*
Package chat contains the real-time core: presence tracking, room membership,
the connection hub, and the message ingest pipeline.

This file defines the Hub, the single owner of the connection set. Its Run loop
serializes every connect and disconnect, so presence edges are derived and
announced in a race-free order: a refused or half-registered connection can
never leave a stray presence increment behind.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatwire/internal/pkg/logx"
)

// lastSeenWriteTimeout bounds the durable last-seen write on the offline edge.
const lastSeenWriteTimeout = 5 * time.Second

// LastSeenStore persists the moment a user's final connection closed.
type LastSeenStore interface {
	TouchLastSeen(ctx context.Context, userID int64, at time.Time) error
}

// Hub owns every live connection and coordinates presence transitions.
type Hub struct {
	presence *Presence
	rooms    *Rooms
	store    LastSeenStore

	// clients is owned exclusively by the Run loop.
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	stop       chan struct{}

	// wg waits for the Run loop to finish during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewHub constructs a Hub and starts its Run loop.
func NewHub(store LastSeenStore) *Hub {
	h := &Hub{
		presence:   NewPresence(),
		rooms:      NewRooms(),
		store:      store,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logx.Logger().With().Str("component", "Hub").Logger(),
	}

	h.wg.Add(1)
	go h.run()

	return h
}

// Presence exposes the presence registry for snapshot requests.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Rooms exposes the room membership table.
func (h *Hub) Rooms() *Rooms {
	return h.rooms
}

// Register hands a freshly authenticated connection to the Run loop.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.stop:
	}
}

// Unregister hands a closing connection to the Run loop. Safe to call more
// than once for the same connection.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stop:
	}
}

// Shutdown stops the Run loop and closes every remaining connection.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub...")

	close(h.stop)
	h.wg.Wait()

	h.logger.Info().Msg("Hub shutdown complete.")
}

// run is the single serialization point for connection lifecycle and the
// presence table derived from it.
func (h *Hub) run() {
	defer h.wg.Done()

	h.logger.Info().Msg("Hub loop started.")

	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case <-h.stop:
			for c := range h.clients {
				c.closeSend()
			}
			h.clients = make(map[*Client]struct{})

			h.logger.Info().Msg("Hub loop stopped.")
			return
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = struct{}{}

	wentOnline := h.presence.Connect(c.userID)

	h.logger.Info().
		Int64("user_id", c.userID).
		Bool("went_online", wentOnline).
		Int("total_conns", len(h.clients)).
		Msg("Connection registered.")

	// Every new connection receives the full presence snapshot unprompted.
	c.sendEvent(EventPresenceSnapshot, PresenceSnapshotPayload{
		OnlineUserIDs: h.presence.Snapshot(),
	})

	// Presence is global: transition edges go to all connections, not just
	// chat participants.
	if wentOnline {
		h.broadcastAll(EventPresenceUpdate, PresenceUpdatePayload{
			UserID: c.userID,
			Online: true,
		})
	}
}

func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	h.rooms.DropConn(c)
	c.closeSend()

	wentOffline := h.presence.Disconnect(c.userID)

	h.logger.Info().
		Int64("user_id", c.userID).
		Bool("went_offline", wentOffline).
		Int("total_conns", len(h.clients)).
		Msg("Connection unregistered.")

	if !wentOffline {
		return
	}

	// Persist last-seen on the offline edge. Failures are logged and never
	// block the disconnect cleanup or the broadcast.
	now := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), lastSeenWriteTimeout)
	if err := h.store.TouchLastSeen(ctx, c.userID, now); err != nil {
		h.logger.Error().Err(err).Int64("user_id", c.userID).Msg("Failed to persist last-seen.")
	}
	cancel()

	lastSeen := now.UnixMilli()
	h.broadcastAll(EventPresenceUpdate, PresenceUpdatePayload{
		UserID:   c.userID,
		Online:   false,
		LastSeen: &lastSeen,
	})
}

// broadcastAll fans one event out to every live connection, dropping frames
// for connections whose send queue is full.
func (h *Hub) broadcastAll(t EventType, payload any) {
	frame, err := EncodeEvent(t, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(t)).Msg("Failed to encode broadcast event.")
		return
	}

	for c := range h.clients {
		if !c.trySend(frame) {
			h.logger.Warn().
				Int64("user_id", c.userID).
				Str("event", string(t)).
				Msg("Client send queue full, dropping broadcast frame.")
		}
	}
}
