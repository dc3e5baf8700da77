/*
Package handler provides HTTP handler functions for the chat REST surface:
chat creation, the chat list, message history, and multipart message sends.
*/
package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"chatwire/internal/app/chat"
	"chatwire/internal/app/db"
	"chatwire/internal/app/user"
	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/req"
	"chatwire/internal/pkg/resp"
)

const (
	// HistoryDefaultLimit is the page size used when the client does not ask for one.
	HistoryDefaultLimit = 50

	// HistoryMaxLimit caps the page size a client may request.
	HistoryMaxLimit = 200

	// MaxAttachmentBytes caps one attachment; the request-body cap in req is
	// wider to leave room for form fields.
	MaxAttachmentBytes int64 = 25 << 20 // 25 MB
)

type CreatePrivateChatInput struct {
	OtherUserID int64 `json:"otherUserId"`
}

// HandleCreatePrivateChat finds or creates the private chat between the caller
// and one other user. Repeating the call returns the same chat.
func HandleCreatePrivateChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreatePrivateChatInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.OtherUserID <= 0 || input.OtherUserID == payload.UserID {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if _, err := deps.Store.GetUserByID(r.Context(), input.OtherUserID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}

			logx.Error(err, "failed to look up chat counterpart")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		chatID, found, err := deps.Store.FindPrivateChat(r.Context(), payload.UserID, input.OtherUserID)
		if err != nil {
			logx.Error(err, "failed to look up private chat")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if !found {
			chatID, err = deps.Store.CreatePrivateChat(r.Context(), payload.UserID, input.OtherUserID)
			if err != nil {
				logx.Error(err, "failed to create private chat")
				resp.RespondError(w, r, errs.NewError(errs.ErrPersistenceFailed))
				return
			}
		}

		resp.RespondSuccess(w, r, map[string]any{
			"chatId":  chatID,
			"existed": found,
		})
	}
}

type CreateGroupChatInput struct {
	Title          string  `json:"title"`
	ParticipantIDs []int64 `json:"participantIds"`
}

// HandleCreateGroupChat creates a group chat with the caller as admin and the
// listed users as members.
func HandleCreateGroupChat(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateGroupChatInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		title := strings.TrimSpace(input.Title)
		if title == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		members := dedupeUserIDs(input.ParticipantIDs, payload.UserID)
		if len(members) == 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		chatID, err := deps.Store.CreateGroupChat(r.Context(), payload.UserID, title, members)
		if err != nil {
			logx.Error(err, "failed to create group chat")
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistenceFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"chatId":       chatID,
			"type":         "group",
			"title":        title,
			"membersCount": len(members) + 1,
		})
	}
}

// participantView is the outward shape of one chat member.
type participantView struct {
	User user.Snapshot `json:"user"`
	Role string        `json:"role"`
}

// HandleListParticipants returns the chat's member list, admins first.
func HandleListParticipants(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
		if err != nil || chatID <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		ok, err := deps.Store.IsParticipant(r.Context(), chatID, payload.UserID)
		if err != nil {
			logx.Error(err, "participant check failed for member list")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		rows, err := deps.Store.ListParticipants(r.Context(), chatID)
		if err != nil {
			logx.Error(err, "failed to list chat participants")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		members := make([]participantView, 0, len(rows))
		for _, row := range rows {
			members = append(members, participantView{
				User: user.SnapshotFromRow(row.User),
				Role: row.Role,
			})
		}

		resp.RespondSuccess(w, r, map[string]any{"participants": members})
	}
}

type AddParticipantsInput struct {
	UserIDs []int64 `json:"userIds"`
}

// HandleAddParticipants adds users to a group chat. Users who already belong
// are skipped. Private chats never gain members.
func HandleAddParticipants(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
		if err != nil || chatID <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var input AddParticipantsInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		userIDs := dedupeUserIDs(input.UserIDs, 0)
		if len(userIDs) == 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		ok, err := deps.Store.IsParticipant(r.Context(), chatID, payload.UserID)
		if err != nil {
			logx.Error(err, "participant check failed for member add")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		chatType, err := deps.Store.ChatType(r.Context(), chatID)
		if err != nil {
			if errors.Is(err, db.ErrChatNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrChatNotFound))
				return
			}

			logx.Error(err, "failed to resolve chat type")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if chatType != "group" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if err := deps.Store.AddParticipants(r.Context(), chatID, userIDs); err != nil {
			logx.Error(err, "failed to add chat participants")
			resp.RespondError(w, r, errs.NewError(errs.ErrPersistenceFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"added": len(userIDs)})
	}
}

// dedupeUserIDs drops non-positive ids, duplicates, and the excluded id
// (pass 0 to exclude nothing), preserving first-seen order.
func dedupeUserIDs(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))

	for _, id := range ids {
		if id <= 0 || id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// chatSummaryView is the outward shape of one chat-list entry.
type chatSummaryView struct {
	ID              int64   `json:"id"`
	Type            string  `json:"type"`
	Title           *string `json:"title"`
	LastMessage     *string `json:"lastMessage"`
	LastMessageTime *int64  `json:"lastMessageTime"`
	CreatedAt       int64   `json:"createdAt"`
	MembersCount    int     `json:"membersCount"`
}

// HandleListChats returns the caller's chat list, most recent activity first.
func HandleListChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		rows, err := deps.Store.ListChatSummaries(r.Context(), payload.UserID)
		if err != nil {
			logx.Error(err, "failed to list chats")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		chats := make([]chatSummaryView, 0, len(rows))
		for _, row := range rows {
			view := chatSummaryView{
				ID:           row.ID,
				Type:         row.Type,
				Title:        row.Title,
				LastMessage:  row.LastMessage,
				CreatedAt:    row.CreatedAt.UnixMilli(),
				MembersCount: row.MembersCount,
			}
			if row.LastMessageTime != nil {
				ms := row.LastMessageTime.UnixMilli()
				view.LastMessageTime = &ms
			}
			chats = append(chats, view)
		}

		resp.RespondSuccess(w, r, map[string]any{"chats": chats})
	}
}

// HandleListMessages serves one page of a chat's history, oldest first within
// the page. Pagination walks backward through message ids via beforeId.
func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
		if err != nil || chatID <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		limit := HistoryDefaultLimit
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			parsed, err := strconv.Atoi(rawLimit)
			if err != nil || parsed <= 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			if parsed > HistoryMaxLimit {
				parsed = HistoryMaxLimit
			}
			limit = parsed
		}

		var beforeID int64
		if rawBefore := r.URL.Query().Get("beforeId"); rawBefore != "" {
			beforeID, err = strconv.ParseInt(rawBefore, 10, 64)
			if err != nil || beforeID <= 0 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
		}

		ok, err := deps.Store.IsParticipant(r.Context(), chatID, payload.UserID)
		if err != nil {
			logx.Error(err, "participant check failed for history read")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		rows, err := deps.Store.ListMessages(r.Context(), chatID, beforeID, limit)
		if err != nil {
			logx.Error(err, "failed to read message history")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		messages := make([]chat.MessageEvent, 0, len(rows))
		for _, row := range rows {
			messages = append(messages, chat.NewMessageEvent(
				row.Message,
				user.SnapshotFromRow(row.Sender),
				deps.FileURL,
			))
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": messages})
	}
}

// HandleSendMessage accepts a multipart message submission. Text messages carry
// only form fields; image, audio, and file messages carry the attachment in the
// "file" part, which is uploaded to the blob store before the ingest pipeline
// runs. The participant check happens before the upload so an outsider can
// never place a blob under a chat's key prefix.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
		if err != nil || chatID <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		kind := chat.Kind(r.FormValue("type"))
		if kind == "" {
			kind = chat.KindText
		}
		if !kind.Valid() {
			resp.RespondError(w, r, errs.NewError(errs.ErrMessageKindInvalid))
			return
		}

		ok, err := deps.Store.IsParticipant(r.Context(), chatID, payload.UserID)
		if err != nil {
			logx.Error(err, "participant check failed for message send")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		input := chat.IngestInput{
			ChatID: chatID,
			Kind:   kind,
			Text:   r.FormValue("text"),
		}

		if kind != chat.KindText {
			file, header, err := r.FormFile("file")
			if err != nil {
				resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentRequired))
				return
			}
			defer file.Close()

			if header.Size > MaxAttachmentBytes {
				resp.RespondError(w, r, errs.NewError(errs.ErrFileSizeTooLarge))
				return
			}

			attachment := chat.Attachment{
				FileKey:  attachmentKey(chatID, header.Filename),
				FileName: header.Filename,
				MimeType: header.Header.Get("Content-Type"),
			}

			if kind == chat.KindAudio {
				if rawDuration := r.FormValue("durationMs"); rawDuration != "" {
					durationMs, err := strconv.ParseInt(rawDuration, 10, 64)
					if err != nil || durationMs < 0 {
						resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
						return
					}
					attachment.DurationMs = &durationMs
				}
			}

			if err := deps.Blobs.Upload(r.Context(), attachment.FileKey, attachment.MimeType, file); err != nil {
				logx.Error(err, "attachment upload failed", "chat_id", chatID)
				resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
				return
			}

			input.Attachment = &attachment
		}

		event, cerr := deps.Ingest.Ingest(r.Context(), payload.UserID, input)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"message": event})
	}
}

// attachmentKey builds the blob key for an uploaded attachment. The chat id
// prefix is what the download handler authorizes against.
func attachmentKey(chatID int64, filename string) string {
	return "chats/" + strconv.FormatInt(chatID, 10) + "/" + uuid.New().String() + filepath.Ext(filename)
}
