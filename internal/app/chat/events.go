/*
Package chat contains the real-time core: presence tracking, room membership,
the connection hub, and the message ingest pipeline.

This file defines the closed set of realtime events. Inbound frames are decoded
exactly once at the transport boundary into tagged variants, so the rest of the
system switches over concrete types instead of comparing event-name strings.
*/
package chat

import (
	"encoding/json"
	"fmt"
)

// EventType tags every frame crossing the realtime channel.
type EventType string

// Client-to-server event types.
const (
	EventJoinChat    EventType = "join_chat"
	EventLeaveChat   EventType = "leave_chat"
	EventSendMessage EventType = "send_message"
	EventPresenceGet EventType = "presence_get"
)

// Server-to-client event types.
const (
	EventPresenceSnapshot EventType = "presence_snapshot"
	EventPresenceUpdate   EventType = "presence_update"
	EventNewMessage       EventType = "new_message"
	EventError            EventType = "error"
)

// Envelope is the wire frame: a type tag plus a type-specific payload.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InboundEvent is the closed set of events a client may send.
type InboundEvent interface {
	isInbound()
}

// JoinChatEvent asks to join the broadcast group of one chat.
type JoinChatEvent struct {
	ChatID int64 `json:"chatId"`
}

// LeaveChatEvent asks to leave the broadcast group of one chat.
type LeaveChatEvent struct {
	ChatID int64 `json:"chatId"`
}

// SendMessageEvent carries a plain-text message. Any other kind must go
// through the REST multipart endpoint, since attachment bytes are transferred
// out-of-band from the realtime channel.
type SendMessageEvent struct {
	ChatID int64  `json:"chatId"`
	Text   string `json:"text"`
}

// PresenceGetEvent requests a fresh presence snapshot.
type PresenceGetEvent struct{}

func (JoinChatEvent) isInbound()    {}
func (LeaveChatEvent) isInbound()   {}
func (SendMessageEvent) isInbound() {}
func (PresenceGetEvent) isInbound() {}

// DecodeInbound parses one raw frame into its tagged variant.
// Unknown event types and malformed payloads are rejected here, so no
// undecoded bytes travel further into the system.
func DecodeInbound(data []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid event frame: %w", err)
	}

	switch env.Type {
	case EventJoinChat:
		var ev JoinChatEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
		return ev, nil

	case EventLeaveChat:
		var ev LeaveChatEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
		return ev, nil

	case EventSendMessage:
		var ev SendMessageEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", env.Type, err)
		}
		return ev, nil

	case EventPresenceGet:
		return PresenceGetEvent{}, nil

	default:
		return nil, fmt.Errorf("unsupported event type %q", env.Type)
	}
}

// PresenceSnapshotPayload lists every user with at least one live connection.
type PresenceSnapshotPayload struct {
	OnlineUserIDs []int64 `json:"onlineUserIds"`
}

// PresenceUpdatePayload announces a presence transition edge.
// LastSeen is set only on the offline edge, in epoch milliseconds.
type PresenceUpdatePayload struct {
	UserID   int64  `json:"userId"`
	Online   bool   `json:"online"`
	LastSeen *int64 `json:"lastSeen,omitempty"`
}

// ErrorPayload reports a rejected operation back to the offending connection.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EncodeEvent marshals an outbound frame.
func EncodeEvent(t EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{Type: t, Payload: raw})
}
