/*
Package chat contains the real-time core: presence tracking, room membership,
the connection hub, and the message ingest pipeline.

This file defines the Ingestor, the single pipeline every new message passes
through regardless of entry point. The realtime send_message event and the
REST multipart endpoint both converge here, so authorization, validation,
persistence, and fan-out behave identically on either path.
*/
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatwire/internal/app/db"
	"chatwire/internal/app/user"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
)

// MaxTextBytes is the maximum allowed size of message text content.
const MaxTextBytes = 5000

// Store is the durable-storage surface the realtime core depends on.
// Implemented by db.Store.
type Store interface {
	IsParticipant(ctx context.Context, chatID, userID int64) (bool, error)
	GetUserByID(ctx context.Context, id int64) (db.UserRow, error)
	CreateMessage(ctx context.Context, p db.NewMessageParams) (db.MessageRow, error)
}

// Broadcaster fans a prepared frame out to a chat's room. Implemented by Rooms.
type Broadcaster interface {
	Broadcast(chatID int64, frame []byte)
}

// Attachment describes an already-stored blob referenced by a non-text message.
type Attachment struct {
	FileKey  string
	FileName string
	MimeType string

	// DurationMs is set for audio messages only.
	DurationMs *int64
}

// IngestInput is one message submission, before validation.
type IngestInput struct {
	ChatID     int64
	Kind       Kind
	Text       string
	Attachment *Attachment
}

// Ingestor validates, persists, and fans out new messages.
type Ingestor struct {
	store   Store
	rooms   Broadcaster
	fileURL func(key string) string
	logger  zerolog.Logger
}

// NewIngestor wires the pipeline. fileURL maps stored blob keys to absolute
// URLs in outward payloads and may be nil when attachments are not served.
func NewIngestor(store Store, rooms Broadcaster, fileURL func(key string) string) *Ingestor {
	return &Ingestor{
		store:   store,
		rooms:   rooms,
		fileURL: fileURL,
		logger:  logx.Logger().With().Str("component", "Ingestor").Logger(),
	}
}

// Ingest runs the full pipeline for one message:
// fresh participant check, kind validation, transactional persist (message row
// plus chat summary), then room broadcast of the finished representation.
//
// Persistence completes before the broadcast is issued, so a client reacting
// to the broadcast by pulling history always finds the message present.
// Authorization and validation failures abort before any write; a persistence
// failure is reported to the caller and nothing is broadcast.
func (ing *Ingestor) Ingest(ctx context.Context, senderID int64, in IngestInput) (*MessageEvent, *errs.CustomError) {
	if cerr := validateInput(&in); cerr != nil {
		return nil, cerr
	}

	ok, err := ing.store.IsParticipant(ctx, in.ChatID, senderID)
	if err != nil {
		ing.logger.Error().Err(err).Int64("chat_id", in.ChatID).Msg("Participant check failed.")
		return nil, errs.NewError(errs.ErrUnknown, err)
	}
	if !ok {
		return nil, errs.NewError(errs.ErrNotParticipant)
	}

	senderRow, err := ing.store.GetUserByID(ctx, senderID)
	if err != nil {
		ing.logger.Error().Err(err).Int64("sender_id", senderID).Msg("Sender lookup failed.")
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	params := db.NewMessageParams{
		ChatID:   in.ChatID,
		SenderID: senderID,
		Kind:     string(in.Kind),
		Text:     in.Text,
	}

	var fileName string
	if in.Attachment != nil {
		a := in.Attachment
		params.FileKey = &a.FileKey
		params.FileName = &a.FileName
		params.MimeType = &a.MimeType
		params.DurationMs = a.DurationMs
		fileName = a.FileName
	}
	params.Preview = Preview(in.Kind, in.Text, fileName)

	row, err := ing.store.CreateMessage(ctx, params)
	if err != nil {
		if errors.Is(err, db.ErrChatNotFound) {
			return nil, errs.NewError(errs.ErrChatNotFound)
		}

		ing.logger.Error().Err(err).Int64("chat_id", in.ChatID).Msg("Message persist failed.")
		return nil, errs.NewError(errs.ErrPersistenceFailed)
	}

	event := NewMessageEvent(row, user.SnapshotFromRow(senderRow), ing.fileURL)

	frame, err := EncodeEvent(EventNewMessage, event)
	if err != nil {
		// The message is durable; only this fan-out is lost. Clients recover
		// it on the next history pull.
		ing.logger.Error().Err(err).Int64("message_id", row.ID).Msg("Failed to encode new_message event.")
		return &event, nil
	}

	ing.rooms.Broadcast(in.ChatID, frame)

	ing.logger.Debug().
		Int64("message_id", row.ID).
		Int64("chat_id", row.ChatID).
		Str("kind", string(in.Kind)).
		Msg("Message ingested and broadcast.")

	return &event, nil
}

// validateInput enforces the per-kind rules before any storage access.
func validateInput(in *IngestInput) *errs.CustomError {
	if in.ChatID <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if !in.Kind.Valid() {
		return errs.NewError(errs.ErrMessageKindInvalid)
	}

	in.Text = strings.TrimSpace(in.Text)
	if len(in.Text) > MaxTextBytes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}

	switch in.Kind {
	case KindText:
		if in.Text == "" {
			return errs.NewError(errs.ErrMessageTextRequired)
		}
		if in.Attachment != nil {
			return errs.NewError(errs.ErrInvalidParams)
		}

	default:
		if in.Attachment == nil || in.Attachment.FileKey == "" {
			return errs.NewError(errs.ErrAttachmentRequired)
		}
		if in.Kind != KindAudio {
			in.Attachment.DurationMs = nil
		}
	}

	return nil
}

// IngestTimeout caps how long an ingest triggered from the realtime path may
// hold a connection goroutine.
const IngestTimeout = 10 * time.Second
