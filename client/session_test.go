package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/app/chat"
)

// wsTestServer accepts one realtime connection and exposes the frames it reads.
type wsTestServer struct {
	srv      *httptest.Server
	inbound  chan chat.Envelope
	conns    chan *websocket.Conn
	tokens   chan string
	upgrader websocket.Upgrader
}

func newWSTestServer(t *testing.T) *wsTestServer {
	t.Helper()

	ws := &wsTestServer{
		inbound: make(chan chat.Envelope, 16),
		conns:   make(chan *websocket.Conn, 32),
		tokens:  make(chan string, 32),
	}

	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.tokens <- r.URL.Query().Get("token")

		conn, err := ws.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.conns <- conn

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var env chat.Envelope
			if err := json.Unmarshal(data, &env); err == nil {
				ws.inbound <- env
			}
		}
	}))

	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(ws.srv.URL, "http")
}

func (ws *wsTestServer) waitFrame(t *testing.T, want chat.EventType) chat.Envelope {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case env := <-ws.inbound:
			if env.Type == want {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", want)
			return chat.Envelope{}
		}
	}
}

func TestSessionSendTextFailsFastWhenDisconnected(t *testing.T) {
	// Nothing listens on this address, so the session stays disconnected.
	s := Dial(context.Background(), "ws://127.0.0.1:1/ws", "tok", Handlers{})
	defer s.Close()

	err := s.SendText(1, "hello")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSessionConnectsAndPresentsToken(t *testing.T) {
	server := newWSTestServer(t)

	connected := make(chan bool, 4)
	s := Dial(context.Background(), server.url(), "my-token", Handlers{
		OnConnectionState: func(up bool) { connected <- up },
	})
	defer s.Close()

	select {
	case token := <-server.tokens:
		assert.Equal(t, "my-token", token)
	case <-time.After(3 * time.Second):
		t.Fatal("server never saw the connection")
	}

	select {
	case up := <-connected:
		assert.True(t, up)
	case <-time.After(3 * time.Second):
		t.Fatal("connection state callback never fired")
	}

	// Every fresh connection asks for a presence snapshot.
	server.waitFrame(t, chat.EventPresenceGet)
}

func TestSessionJoinAndSendReachServer(t *testing.T) {
	server := newWSTestServer(t)

	connected := make(chan bool, 4)
	s := Dial(context.Background(), server.url(), "tok", Handlers{
		OnConnectionState: func(up bool) { connected <- up },
	})
	defer s.Close()

	select {
	case <-connected:
	case <-time.After(3 * time.Second):
		t.Fatal("session never connected")
	}

	require.NoError(t, s.JoinChat(42))
	env := server.waitFrame(t, chat.EventJoinChat)
	var join chat.JoinChatEvent
	require.NoError(t, json.Unmarshal(env.Payload, &join))
	assert.Equal(t, int64(42), join.ChatID)

	require.NoError(t, s.SendText(42, "hello"))
	env = server.waitFrame(t, chat.EventSendMessage)
	var send chat.SendMessageEvent
	require.NoError(t, json.Unmarshal(env.Payload, &send))
	assert.Equal(t, int64(42), send.ChatID)
	assert.Equal(t, "hello", send.Text)
}

func TestSessionDispatchesServerEvents(t *testing.T) {
	server := newWSTestServer(t)

	messages := make(chan chat.MessageEvent, 4)
	snapshots := make(chan chat.PresenceSnapshotPayload, 4)

	s := Dial(context.Background(), server.url(), "tok", Handlers{
		OnMessage:          func(m chat.MessageEvent) { messages <- m },
		OnPresenceSnapshot: func(p chat.PresenceSnapshotPayload) { snapshots <- p },
	})
	defer s.Close()

	var conn *websocket.Conn
	select {
	case conn = <-server.conns:
	case <-time.After(3 * time.Second):
		t.Fatal("server never accepted the connection")
	}

	frame, err := chat.EncodeEvent(chat.EventPresenceSnapshot, chat.PresenceSnapshotPayload{
		OnlineUserIDs: []int64{1, 2},
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	select {
	case snap := <-snapshots:
		assert.Equal(t, []int64{1, 2}, snap.OnlineUserIDs)
	case <-time.After(3 * time.Second):
		t.Fatal("snapshot callback never fired")
	}

	frame, err = chat.EncodeEvent(chat.EventNewMessage, chat.MessageEvent{
		ID:     101,
		ChatID: 42,
		Kind:   chat.KindText,
		Text:   "hi",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))

	select {
	case msg := <-messages:
		assert.Equal(t, int64(101), msg.ID)
		assert.Equal(t, "hi", msg.Text)
	case <-time.After(3 * time.Second):
		t.Fatal("message callback never fired")
	}
}

func TestSessionReconnectDoesNotAccumulateGoroutines(t *testing.T) {
	server := newWSTestServer(t)

	baseline := runtime.NumGoroutine()

	connected := make(chan bool, 32)
	s := Dial(context.Background(), server.url(), "tok", Handlers{
		OnConnectionState: func(up bool) { connected <- up },
	})

	waitState := func(want bool) {
		t.Helper()
		deadline := time.After(10 * time.Second)
		for {
			select {
			case up := <-connected:
				if up == want {
					return
				}
			case <-deadline:
				t.Fatalf("never reached connection state %v", want)
			}
		}
	}

	// Force several reconnect cycles by killing each connection server-side.
	for i := 0; i < 5; i++ {
		waitState(true)

		var conn *websocket.Conn
		select {
		case conn = <-server.conns:
		case <-time.After(3 * time.Second):
			t.Fatal("server never accepted the connection")
		}
		conn.Close()

		waitState(false)
	}

	s.Close()

	// Everything the session spawned, including the per-connection read
	// watchers, must be gone once it closes.
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+3
	}, 5*time.Second, 50*time.Millisecond, "session goroutines leaked across reconnects")
}

func TestSessionRejoinsRoomsAfterReconnect(t *testing.T) {
	server := newWSTestServer(t)

	connected := make(chan bool, 8)
	s := Dial(context.Background(), server.url(), "tok", Handlers{
		OnConnectionState: func(up bool) { connected <- up },
	})
	defer s.Close()

	waitState := func(want bool) {
		t.Helper()
		deadline := time.After(10 * time.Second)
		for {
			select {
			case up := <-connected:
				if up == want {
					return
				}
			case <-deadline:
				t.Fatalf("never reached connection state %v", want)
			}
		}
	}

	waitState(true)
	require.NoError(t, s.JoinChat(42))
	server.waitFrame(t, chat.EventJoinChat)

	// Kill the connection from the server side; the session must come back
	// and rejoin the room without any caller involvement.
	var conn *websocket.Conn
	select {
	case conn = <-server.conns:
	case <-time.After(3 * time.Second):
		t.Fatal("server never accepted the first connection")
	}
	conn.Close()

	waitState(false)
	waitState(true)

	env := server.waitFrame(t, chat.EventJoinChat)
	var join chat.JoinChatEvent
	require.NoError(t, json.Unmarshal(env.Payload, &join))
	assert.Equal(t, int64(42), join.ChatID)
}
