/*
Package chat contains the real-time core: presence tracking, room membership,
the connection hub, and the message ingest pipeline.

This file defines the Client struct, representing one authenticated WebSocket
connection. It manages the connection lifecycle, the communication loops
(ReadPump and WritePump), and dispatches decoded inbound events to the hub,
room table, and ingest pipeline.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// capacity of the per-connection outbound queue.
	sendQueueSize = 256
)

// Client represents one live WebSocket connection tagged with the identity the
// connection authenticator verified at establishment time.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64

	store  Store
	ingest *Ingestor

	// send queues outbound frames; closed by the hub on unregister. All
	// producers go through trySend, which is what makes that close safe
	// while the read goroutine or a room broadcast is still running.
	send     chan []byte
	sendMu   sync.Mutex
	sendDone bool

	logger zerolog.Logger
}

// trySend queues one frame without blocking. It reports false when the queue
// is full or already closed; either way the frame is dropped, never panicked
// on.
func (c *Client) trySend(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendDone {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once. Only the hub calls this.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendDone {
		return
	}
	c.sendDone = true
	close(c.send)
}

// NewClient constructs a Client for an already-authenticated connection.
func NewClient(hub *Hub, conn *websocket.Conn, userID int64, store Store, ingest *Ingestor) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "Client").
		Int64("user_id", userID).
		Logger()

	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		store:  store,
		ingest: ingest,
		send:   make(chan []byte, sendQueueSize),
		logger: clientLogger,
	}
}

// UserID returns the authenticated identity bound to this connection.
func (c *Client) UserID() int64 {
	return c.userID
}

// ReadPump reads frames from the WebSocket connection until it closes.
// It handles heartbeats (Pong), decodes inbound events, and performs cleanup
// upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.handleInbound(frame)
	}
}

// cleanupOnDisconnect hands the connection back to the hub, which drops all
// room memberships and derives the presence transition.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.hub.Unregister(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// handleInbound decodes one raw frame and dispatches the tagged variant.
func (c *Client) handleInbound(frame []byte) {
	event, err := DecodeInbound(frame)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Client sent an invalid event frame")
		return
	}

	switch ev := event.(type) {
	case JoinChatEvent:
		c.handleJoin(ev)

	case LeaveChatEvent:
		c.hub.Rooms().Leave(c, ev.ChatID)

	case SendMessageEvent:
		c.handleSend(ev)

	case PresenceGetEvent:
		c.sendEvent(EventPresenceSnapshot, PresenceSnapshotPayload{
			OnlineUserIDs: c.hub.Presence().Snapshot(),
		})
	}
}

// handleJoin re-validates participation against durable storage before adding
// the connection to the room. A non-participant join is a silent no-op: the
// client receives no error and no further events for that room.
func (c *Client) handleJoin(ev JoinChatEvent) {
	if ev.ChatID <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), IngestTimeout)
	defer cancel()

	ok, err := c.store.IsParticipant(ctx, ev.ChatID, c.userID)
	if err != nil {
		c.logger.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("Join participant check failed")
		return
	}
	if !ok {
		c.logger.Debug().Int64("chat_id", ev.ChatID).Msg("Join refused: not a participant")
		return
	}

	c.hub.Rooms().Join(c, ev.ChatID)
}

// handleSend runs the text-message path of the ingest pipeline. The sender
// receives the finished message through the room broadcast like every other
// member; rejected sends come back as an error event.
func (c *Client) handleSend(ev SendMessageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), IngestTimeout)
	defer cancel()

	_, cerr := c.ingest.Ingest(ctx, c.userID, IngestInput{
		ChatID: ev.ChatID,
		Kind:   KindText,
		Text:   ev.Text,
	})

	if cerr != nil {
		c.SendError(cerr)
	}
}

// sendEvent encodes and queues one outbound event, dropping it if the send
// queue is full.
func (c *Client) sendEvent(t EventType, payload any) {
	frame, err := EncodeEvent(t, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(t)).Msg("Failed to encode outbound event")
		return
	}

	if !c.trySend(frame) {
		c.logger.Warn().Str("event", string(t)).Int("queue_len", len(c.send)).Msg("Send queue full or closed, dropping event")
	}
}

// SendError queues an error event describing a rejected operation.
func (c *Client) SendError(cerr *errs.CustomError) {
	c.sendEvent(EventError, ErrorPayload{
		Code:    cerr.Code,
		Message: cerr.Message,
	})
}

// WritePump writes queued frames to the WebSocket connection and maintains the
// heartbeat. It terminates when the send queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame writes one frame pulled from the send queue.
// Returns true if the WritePump loop should continue.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping to maintain the heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
