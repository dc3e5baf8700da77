package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundVariants(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  InboundEvent
	}{
		{
			name:  "join_chat",
			frame: `{"type":"join_chat","payload":{"chatId":12}}`,
			want:  JoinChatEvent{ChatID: 12},
		},
		{
			name:  "leave_chat",
			frame: `{"type":"leave_chat","payload":{"chatId":12}}`,
			want:  LeaveChatEvent{ChatID: 12},
		},
		{
			name:  "send_message",
			frame: `{"type":"send_message","payload":{"chatId":12,"text":"hi"}}`,
			want:  SendMessageEvent{ChatID: 12, Text: "hi"},
		},
		{
			name:  "presence_get without payload",
			frame: `{"type":"presence_get"}`,
			want:  PresenceGetEvent{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInboundRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{name: "not json", frame: `hello`},
		{name: "unknown type", frame: `{"type":"typing","payload":{}}`},
		{name: "malformed payload", frame: `{"type":"join_chat","payload":{"chatId":"twelve"}}`},
		{name: "server-only type", frame: `{"type":"new_message","payload":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.frame))
			assert.Error(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestEncodeEventRoundTrip(t *testing.T) {
	lastSeen := int64(1700000000000)

	frame, err := EncodeEvent(EventPresenceUpdate, PresenceUpdatePayload{
		UserID:   5,
		Online:   false,
		LastSeen: &lastSeen,
	})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, EventPresenceUpdate, env.Type)

	var payload PresenceUpdatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, int64(5), payload.UserID)
	assert.False(t, payload.Online)
	require.NotNil(t, payload.LastSeen)
	assert.Equal(t, lastSeen, *payload.LastSeen)
}

func TestEncodeEventOmitsLastSeenOnline(t *testing.T) {
	frame, err := EncodeEvent(EventPresenceUpdate, PresenceUpdatePayload{UserID: 5, Online: true})
	require.NoError(t, err)

	assert.NotContains(t, string(frame), "lastSeen")
}
