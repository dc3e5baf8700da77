/*
Package chat contains the real-time core: presence tracking, room membership,
the connection hub, and the message ingest pipeline.

This file defines the message kinds and the outward message representation
shared by the REST history endpoint and the new_message broadcast.
*/
package chat

import (
	"chatwire/internal/app/db"
	"chatwire/internal/app/user"
)

// Kind is the closed set of message content kinds.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindFile  Kind = "file"
)

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindAudio, KindFile:
		return true
	}
	return false
}

// MessageEvent is the wire shape of one message, identical on the history
// endpoint and the realtime broadcast. ID is the sole ordering key; CreatedAt
// is informational only and must never be used to decide ordering.
type MessageEvent struct {
	ID         int64         `json:"id"`
	ChatID     int64         `json:"chatId"`
	SenderID   int64         `json:"senderId"`
	Kind       Kind          `json:"type"`
	Text       string        `json:"text"`
	FileURL    *string       `json:"fileUrl"`
	FileName   *string       `json:"fileName"`
	MimeType   *string       `json:"mimeType"`
	DurationMs *int64        `json:"durationMs"`
	CreatedAt  int64         `json:"createdAt"`
	Sender     user.Snapshot `json:"sender"`
}

// NewMessageEvent builds the outward representation from a persisted row and
// the resolved sender snapshot. fileURL maps a stored blob key to an absolute
// URL and may be nil when the row has no attachment.
func NewMessageEvent(row db.MessageRow, sender user.Snapshot, fileURL func(key string) string) MessageEvent {
	ev := MessageEvent{
		ID:         row.ID,
		ChatID:     row.ChatID,
		SenderID:   row.SenderID,
		Kind:       Kind(row.Kind),
		Text:       row.Text,
		FileName:   row.FileName,
		MimeType:   row.MimeType,
		DurationMs: row.DurationMs,
		CreatedAt:  row.CreatedAt.UnixMilli(),
		Sender:     sender,
	}

	if row.FileKey != nil && fileURL != nil {
		url := fileURL(*row.FileKey)
		ev.FileURL = &url
	}

	return ev
}

// Preview derives the chat-list summary text for a message.
func Preview(kind Kind, text, fileName string) string {
	switch kind {
	case KindImage:
		if text != "" {
			return "Photo: " + text
		}
		return "Photo"
	case KindAudio:
		return "Voice message"
	case KindFile:
		if fileName != "" {
			return fileName
		}
		return "File"
	default:
		return text
	}
}
