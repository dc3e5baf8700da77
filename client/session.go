/*
Package client is the Go façade for the realtime chat protocol.

A Session owns one WebSocket connection to the server. It reconnects with
exponential backoff when the connection drops, and on every (re)connection it
rejoins the chats the caller had joined and requests a fresh presence
snapshot, so local presence and room state converge after any gap.
*/
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatwire/internal/app/chat"
)

// ErrNotConnected is returned by send operations while the session has no
// live connection. Callers decide whether to retry; the session never queues
// outbound events across a gap.
var ErrNotConnected = errors.New("session is not connected")

const (
	dialTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	readIdleTimeout   = 90 * time.Second
	reconnectBaseWait = time.Second
	reconnectMaxWait  = 30 * time.Second
)

// Handlers carries the caller's event callbacks. Any field may be nil.
// Callbacks run on the session's read goroutine and must not block.
type Handlers struct {
	OnMessage          func(chat.MessageEvent)
	OnPresenceSnapshot func(chat.PresenceSnapshotPayload)
	OnPresenceUpdate   func(chat.PresenceUpdatePayload)
	OnServerError      func(chat.ErrorPayload)

	// OnConnectionState fires on every transition between connected and
	// disconnected, including the initial connect.
	OnConnectionState func(connected bool)
}

// Session is one authenticated realtime connection with automatic reconnect.
type Session struct {
	url      string
	token    string
	handlers Handlers

	mu     sync.Mutex
	conn   *websocket.Conn
	joined map[int64]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial opens a session against wsURL (a ws:// or wss:// endpoint) using the
// given bearer token, and starts the connection loop. The returned session is
// live until Close is called or ctx is cancelled; connection drops in between
// are handled internally.
func Dial(ctx context.Context, wsURL, token string, handlers Handlers) *Session {
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		url:      wsURL,
		token:    token,
		handlers: handlers,
		joined:   make(map[int64]struct{}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.run(ctx)

	return s
}

// Close tears the session down and waits for its goroutine to exit.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// JoinChat subscribes to a chat's broadcasts. Membership is remembered and
// replayed on reconnect, so one call outlives connection gaps.
func (s *Session) JoinChat(chatID int64) error {
	s.mu.Lock()
	s.joined[chatID] = struct{}{}
	s.mu.Unlock()

	return s.send(chat.EventJoinChat, chat.JoinChatEvent{ChatID: chatID})
}

// LeaveChat unsubscribes from a chat's broadcasts.
func (s *Session) LeaveChat(chatID int64) error {
	s.mu.Lock()
	delete(s.joined, chatID)
	s.mu.Unlock()

	return s.send(chat.EventLeaveChat, chat.LeaveChatEvent{ChatID: chatID})
}

// SendText submits a plain-text message. It fails fast with ErrNotConnected
// during a connection gap; delivery of other kinds goes through the REST API.
func (s *Session) SendText(chatID int64, text string) error {
	return s.send(chat.EventSendMessage, chat.SendMessageEvent{ChatID: chatID, Text: text})
}

// RequestPresence asks the server for a fresh presence snapshot, delivered
// through the OnPresenceSnapshot callback.
func (s *Session) RequestPresence() error {
	return s.send(chat.EventPresenceGet, chat.PresenceGetEvent{})
}

// send encodes and writes one frame on the current connection.
func (s *Session) send(t chat.EventType, payload any) error {
	frame, err := chat.EncodeEvent(t, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s: %w", t, err)
	}
	return nil
}

// run drives the connect / read / reconnect cycle until the session closes.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	wait := reconnectBaseWait

	for {
		conn, err := s.dial(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}

			wait *= 2
			if wait > reconnectMaxWait {
				wait = reconnectMaxWait
			}
			continue
		}

		wait = reconnectBaseWait

		s.attach(conn)
		s.readLoop(ctx, conn)
		s.detach(conn)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url+"?token="+s.token, nil)
	return conn, err
}

// attach installs the new connection, replays room membership, and requests a
// presence snapshot so local state converges after the gap.
func (s *Session) attach(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteMessage(websocket.PongMessage, []byte(appData))
	})

	s.mu.Lock()
	s.conn = conn
	rooms := make([]int64, 0, len(s.joined))
	for chatID := range s.joined {
		rooms = append(rooms, chatID)
	}
	s.mu.Unlock()

	if s.handlers.OnConnectionState != nil {
		s.handlers.OnConnectionState(true)
	}

	for _, chatID := range rooms {
		s.send(chat.EventJoinChat, chat.JoinChatEvent{ChatID: chatID})
	}
	s.send(chat.EventPresenceGet, chat.PresenceGetEvent{})
}

func (s *Session) detach(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	conn.Close()

	if s.handlers.OnConnectionState != nil {
		s.handlers.OnConnectionState(false)
	}
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) {
	// The watcher unblocks ReadMessage on cancellation; readDone releases it
	// when the connection dies on its own, so reconnect cycles do not stack
	// up watcher goroutines.
	readDone := make(chan struct{})
	defer close(readDone)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readIdleTimeout))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		s.dispatch(data)
	}
}

// dispatch decodes one server frame and routes it to the caller's handler.
// Unknown or malformed frames are dropped; the protocol may grow server-side
// without breaking older clients.
func (s *Session) dispatch(data []byte) {
	var env chat.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}

	switch env.Type {
	case chat.EventNewMessage:
		if s.handlers.OnMessage == nil {
			return
		}
		var ev chat.MessageEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		s.handlers.OnMessage(ev)

	case chat.EventPresenceSnapshot:
		if s.handlers.OnPresenceSnapshot == nil {
			return
		}
		var ev chat.PresenceSnapshotPayload
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		s.handlers.OnPresenceSnapshot(ev)

	case chat.EventPresenceUpdate:
		if s.handlers.OnPresenceUpdate == nil {
			return
		}
		var ev chat.PresenceUpdatePayload
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		s.handlers.OnPresenceUpdate(ev)

	case chat.EventError:
		if s.handlers.OnServerError == nil {
			return
		}
		var ev chat.ErrorPayload
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return
		}
		s.handlers.OnServerError(ev)
	}
}
