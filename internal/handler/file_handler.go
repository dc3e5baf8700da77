/*
Package handler provides the HTTP handler function for attachment downloads.
*/
package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatwire/internal/pkg/auth/jwt"
	"chatwire/internal/pkg/errs"
	"chatwire/internal/pkg/logx"
	"chatwire/internal/pkg/resp"

	"github.com/go-chi/chi/v5"
)

// PresignDuration bounds how long a handed-out download URL stays valid.
const PresignDuration = 5 * time.Minute

// HandleDownloadFile authorizes an attachment download and redirects to a
// short-lived presigned URL. Authorization derives from the key itself: every
// attachment key starts with "chats/{chatID}/", and only participants of that
// chat may fetch it.
func HandleDownloadFile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		key := chi.URLParam(r, "*")

		chatID, ok := chatIDFromKey(key)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		isParticipant, err := deps.Store.IsParticipant(r.Context(), chatID, payload.UserID)
		if err != nil {
			logx.Error(err, "participant check failed for file download")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}
		if !isParticipant {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotParticipant))
			return
		}

		url, err := deps.Blobs.PresignDownload(r.Context(), key, PresignDuration)
		if err != nil {
			logx.Error(err, "failed to presign download URL", "key", key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}

// chatIDFromKey extracts the chat identifier from an attachment key of the
// form "chats/{chatID}/{blob}".
func chatIDFromKey(key string) (int64, bool) {
	rest, found := strings.CutPrefix(key, "chats/")
	if !found {
		return 0, false
	}

	idPart, blobPart, found := strings.Cut(rest, "/")
	if !found || blobPart == "" {
		return 0, false
	}

	chatID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || chatID <= 0 {
		return 0, false
	}

	return chatID, true
}
