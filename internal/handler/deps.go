package handler

import (
	"context"

	"chatwire/internal/app/chat"
	"chatwire/internal/app/db"
	"chatwire/internal/app/storage"
	"chatwire/internal/configs"
)

// Store is the durable-storage surface the HTTP handlers depend on.
// Implemented by db.Store; handler tests substitute fakes.
type Store interface {
	chat.Store

	CreateUser(ctx context.Context, email, username, passwordHash string) (db.UserRow, error)
	GetUserByEmail(ctx context.Context, email string) (db.UserRow, error)
	FindPrivateChat(ctx context.Context, userA, userB int64) (int64, bool, error)
	CreatePrivateChat(ctx context.Context, creator, other int64) (int64, error)
	CreateGroupChat(ctx context.Context, creator int64, title string, memberIDs []int64) (int64, error)
	ChatType(ctx context.Context, chatID int64) (string, error)
	ListParticipants(ctx context.Context, chatID int64) ([]db.ParticipantRow, error)
	AddParticipants(ctx context.Context, chatID int64, userIDs []int64) error
	ListChatSummaries(ctx context.Context, userID int64) ([]db.ChatSummaryRow, error)
	ListMessages(ctx context.Context, chatID, beforeID int64, limit int) ([]db.MessageWithSender, error)
}

// AppDeps bundles the collaborators every handler may need.
type AppDeps struct {
	Config *configs.AppConfig
	Hub    *chat.Hub
	Ingest *chat.Ingestor
	Store  Store
	Blobs  storage.BlobStore
}

// FileURL maps a stored attachment key to the absolute URL clients fetch it from.
func (d *AppDeps) FileURL(key string) string {
	return d.Config.PublicBaseURL + "/files/" + key
}
