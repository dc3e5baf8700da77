package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwire/internal/app/db"
	"chatwire/internal/app/user"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		text     string
		fileName string
		want     string
	}{
		{name: "text", kind: KindText, text: "hello", want: "hello"},
		{name: "image without caption", kind: KindImage, want: "Photo"},
		{name: "image with caption", kind: KindImage, text: "sunset", want: "Photo: sunset"},
		{name: "audio", kind: KindAudio, want: "Voice message"},
		{name: "file with name", kind: KindFile, fileName: "report.pdf", want: "report.pdf"},
		{name: "file without name", kind: KindFile, want: "File"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preview(tt.kind, tt.text, tt.fileName))
		})
	}
}

func TestNewMessageEvent(t *testing.T) {
	fileKey := "chats/10/blob.jpg"
	fileName := "photo.jpg"
	mimeType := "image/jpeg"
	createdAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	row := db.MessageRow{
		ID:        101,
		ChatID:    10,
		SenderID:  7,
		Kind:      string(KindImage),
		Text:      "sunset",
		FileKey:   &fileKey,
		FileName:  &fileName,
		MimeType:  &mimeType,
		CreatedAt: createdAt,
	}
	sender := user.Snapshot{ID: 7, Username: "alice"}

	ev := NewMessageEvent(row, sender, func(key string) string {
		return "http://files.test/" + key
	})

	assert.Equal(t, int64(101), ev.ID)
	assert.Equal(t, KindImage, ev.Kind)
	assert.Equal(t, createdAt.UnixMilli(), ev.CreatedAt)
	assert.Equal(t, sender, ev.Sender)

	require.NotNil(t, ev.FileURL)
	assert.Equal(t, "http://files.test/chats/10/blob.jpg", *ev.FileURL)
}

func TestNewMessageEventWithoutAttachment(t *testing.T) {
	row := db.MessageRow{
		ID:        102,
		ChatID:    10,
		SenderID:  7,
		Kind:      string(KindText),
		Text:      "hi",
		CreatedAt: time.Now(),
	}

	ev := NewMessageEvent(row, user.Snapshot{ID: 7}, func(key string) string {
		t.Fatal("fileURL must not be called for a message without attachment")
		return ""
	})

	assert.Nil(t, ev.FileURL)
}
