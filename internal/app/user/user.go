/*
Package user contains the outward representation of an account.

The Snapshot struct is the nested sender object embedded in every message
payload and the shape returned by the auth endpoints.
*/
package user

import "chatwire/internal/app/db"

// Snapshot is the public view of an account at a point in time.
// Fields use JSON tags matching the wire contract of message payloads.
type Snapshot struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Status   string `json:"status"`

	// AvatarURL is null when the user has not set an avatar.
	AvatarURL *string `json:"avatarUrl"`

	// LastSeen is epoch milliseconds of the user's last 1-to-0 presence
	// transition, null until the user has disconnected at least once.
	LastSeen *int64 `json:"lastSeen"`
}

// SnapshotFromRow converts a durable account row into its public view.
func SnapshotFromRow(row db.UserRow) Snapshot {
	s := Snapshot{
		ID:        row.ID,
		Email:     row.Email,
		Username:  row.Username,
		Status:    row.Status,
		AvatarURL: row.AvatarURL,
	}

	if row.LastSeen != nil {
		ms := row.LastSeen.UnixMilli()
		s.LastSeen = &ms
	}

	return s
}
