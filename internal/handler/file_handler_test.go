package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatIDFromKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		wantID int64
		wantOK bool
	}{
		{name: "valid key", key: "chats/12/abc.jpg", wantID: 12, wantOK: true},
		{name: "nested blob name", key: "chats/12/a/b.jpg", wantID: 12, wantOK: true},
		{name: "missing prefix", key: "avatars/12/abc.jpg"},
		{name: "missing blob part", key: "chats/12/"},
		{name: "no separator after id", key: "chats/12"},
		{name: "non-numeric id", key: "chats/twelve/abc.jpg"},
		{name: "zero id", key: "chats/0/abc.jpg"},
		{name: "negative id", key: "chats/-3/abc.jpg"},
		{name: "empty key", key: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := chatIDFromKey(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestAttachmentKeyShape(t *testing.T) {
	key := attachmentKey(12, "voice note.ogg")

	id, ok := chatIDFromKey(key)
	assert.True(t, ok, "generated keys must parse back for download authorization")
	assert.Equal(t, int64(12), id)
	assert.Contains(t, key, ".ogg")

	// Keys are unique per upload even for identical file names.
	assert.NotEqual(t, key, attachmentKey(12, "voice note.ogg"))
}
