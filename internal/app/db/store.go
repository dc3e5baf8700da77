/*
Package db owns durable storage: the PostgreSQL connection pool, embedded schema
migrations, and the Store with every parameterized query the server issues.

The Store centralizes the participant check used identically by room joins,
message sends, and history reads, and guarantees that a message insert and the
owning chat's summary update commit in one transaction.
*/
package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrChatNotFound marks writes against a chat id that has no chats row.
var ErrChatNotFound = errors.New("chat not found")

// Store executes all application queries against the connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UserRow is the durable representation of an account.
type UserRow struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	Status       string
	AvatarURL    *string
	LastSeen     *time.Time
}

// MessageRow is the durable representation of a chat message. Rows are immutable
// once inserted; ID is the sole ordering key.
type MessageRow struct {
	ID         int64
	ChatID     int64
	SenderID   int64
	Kind       string
	Text       string
	FileKey    *string
	FileName   *string
	MimeType   *string
	DurationMs *int64
	CreatedAt  time.Time
}

// ChatSummaryRow carries the derived chat-list cache: the last message preview
// and its timestamp, maintained transactionally by CreateMessage.
type ChatSummaryRow struct {
	ID              int64
	Type            string
	Title           *string
	LastMessage     *string
	LastMessageTime *time.Time
	CreatedAt       time.Time
	MembersCount    int
}

const userColumns = "id, email, username, password_hash, status, avatar_url, last_seen"

func scanUser(row pgx.Row) (UserRow, error) {
	var u UserRow
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Status, &u.AvatarURL, &u.LastSeen)
	return u, err
}

// CreateUser inserts a new account row. A unique violation on email or username
// surfaces as an error detectable with IsUniqueViolation.
func (s *Store) CreateUser(ctx context.Context, email, username, passwordHash string) (UserRow, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		email, username, passwordHash,
	)
	return scanUser(row)
}

// GetUserByID fetches one account by its identifier.
func (s *Store) GetUserByID(ctx context.Context, id int64) (UserRow, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail fetches one account by email, used by login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// TouchLastSeen records the moment a user's final connection closed.
func (s *Store) TouchLastSeen(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_seen = $2 WHERE id = $1`, userID, at)
	return err
}

// IsParticipant reports whether the user belongs to the chat. This single query
// gates room joins, message ingest, and history reads; callers must not cache
// the result across operations.
func (s *Store) IsParticipant(ctx context.Context, chatID, userID int64) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2`,
		chatID, userID,
	).Scan(&one)

	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindPrivateChat looks up an existing private chat between the two users.
// The second return value reports whether such a chat exists.
func (s *Store) FindPrivateChat(ctx context.Context, userA, userB int64) (int64, bool, error) {
	var chatID int64
	err := s.pool.QueryRow(ctx,
		`SELECT c.id
		 FROM chats c
		 JOIN chat_participants p1 ON p1.chat_id = c.id AND p1.user_id = $1
		 JOIN chat_participants p2 ON p2.chat_id = c.id AND p2.user_id = $2
		 WHERE c.type = 'private'
		 LIMIT 1`,
		userA, userB,
	).Scan(&chatID)

	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return chatID, true, nil
}

// CreatePrivateChat inserts a private chat and both participant rows in one transaction.
func (s *Store) CreatePrivateChat(ctx context.Context, creator, other int64) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var chatID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO chats (type, created_by) VALUES ('private', $1) RETURNING id`,
		creator,
	).Scan(&chatID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_participants (chat_id, user_id, role)
		 VALUES ($1, $2, 'admin'), ($1, $3, 'member')`,
		chatID, creator, other,
	)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return chatID, nil
}

// CreateGroupChat inserts a group chat and its participant rows in one
// transaction. The creator becomes admin and is always a member, even when
// absent from memberIDs; duplicate ids collapse to one row.
func (s *Store) CreateGroupChat(ctx context.Context, creator int64, title string, memberIDs []int64) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var chatID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO chats (type, title, created_by) VALUES ('group', $1, $2) RETURNING id`,
		title, creator,
	).Scan(&chatID)
	if err != nil {
		return 0, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO chat_participants (chat_id, user_id, role)
		 VALUES ($1, $2, 'admin')`,
		chatID, creator,
	)
	if err != nil {
		return 0, err
	}

	for _, userID := range memberIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, user_id, role)
			 VALUES ($1, $2, 'member')
			 ON CONFLICT (chat_id, user_id) DO NOTHING`,
			chatID, userID,
		)
		if err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return chatID, nil
}

// ChatType returns the chat's type. ErrChatNotFound when no such chat exists.
func (s *Store) ChatType(ctx context.Context, chatID int64) (string, error) {
	var chatType string
	err := s.pool.QueryRow(ctx, `SELECT type FROM chats WHERE id = $1`, chatID).Scan(&chatType)

	if err == pgx.ErrNoRows {
		return "", ErrChatNotFound
	}
	if err != nil {
		return "", err
	}
	return chatType, nil
}

// ParticipantRow pairs one member's account row with their role in the chat.
type ParticipantRow struct {
	User UserRow
	Role string
}

// ListParticipants returns every member of the chat, admins first, then by
// username.
func (s *Store) ListParticipants(ctx context.Context, chatID int64) ([]ParticipantRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.email, u.username, u.password_hash, u.status, u.avatar_url, u.last_seen, cp.role
		 FROM chat_participants cp
		 JOIN users u ON u.id = cp.user_id
		 WHERE cp.chat_id = $1
		 ORDER BY (cp.role = 'admin') DESC, u.username ASC`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ParticipantRow
	for rows.Next() {
		var p ParticipantRow
		err := rows.Scan(
			&p.User.ID, &p.User.Email, &p.User.Username, &p.User.PasswordHash,
			&p.User.Status, &p.User.AvatarURL, &p.User.LastSeen, &p.Role,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddParticipants inserts the given users as members of the chat. Users who
// are already participants are skipped silently.
func (s *Store) AddParticipants(ctx context.Context, chatID int64, userIDs []int64) error {
	for _, userID := range userIDs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, user_id, role)
			 VALUES ($1, $2, 'member')
			 ON CONFLICT (chat_id, user_id) DO NOTHING`,
			chatID, userID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListChatSummaries returns the chat-list projection for a user, most recent
// activity first. Summary fields come from the derived cache only.
func (s *Store) ListChatSummaries(ctx context.Context, userID int64) ([]ChatSummaryRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.type, c.title, c.last_message, c.last_message_time, c.created_at,
		        (SELECT COUNT(*) FROM chat_participants cp WHERE cp.chat_id = c.id) AS members_count
		 FROM chats c
		 JOIN chat_participants me ON me.chat_id = c.id AND me.user_id = $1
		 ORDER BY COALESCE(c.last_message_time, c.created_at) DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatSummaryRow
	for rows.Next() {
		var c ChatSummaryRow
		if err := rows.Scan(&c.ID, &c.Type, &c.Title, &c.LastMessage, &c.LastMessageTime, &c.CreatedAt, &c.MembersCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// NewMessageParams describes a validated message about to be persisted.
type NewMessageParams struct {
	ChatID     int64
	SenderID   int64
	Kind       string
	Text       string
	FileKey    *string
	FileName   *string
	MimeType   *string
	DurationMs *int64

	// Preview is the chat-list text written into the chat summary.
	Preview string
}

// CreateMessage inserts the message row and updates the owning chat's summary
// in a single transaction, so the summary and the message can never disagree
// about which message is last. The returned row carries the assigned
// monotonically increasing identifier.
func (s *Store) CreateMessage(ctx context.Context, p NewMessageParams) (MessageRow, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return MessageRow{}, err
	}
	defer tx.Rollback(ctx)

	var m MessageRow
	err = tx.QueryRow(ctx,
		`INSERT INTO messages (chat_id, sender_id, type, text, file_key, file_name, mime_type, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, chat_id, sender_id, type, text, file_key, file_name, mime_type, duration_ms, created_at`,
		p.ChatID, p.SenderID, p.Kind, p.Text, p.FileKey, p.FileName, p.MimeType, p.DurationMs,
	).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Kind, &m.Text, &m.FileKey, &m.FileName, &m.MimeType, &m.DurationMs, &m.CreatedAt)
	if err != nil {
		return MessageRow{}, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE chats SET last_message = $2, last_message_time = $3 WHERE id = $1`,
		p.ChatID, p.Preview, m.CreatedAt,
	)
	if err != nil {
		return MessageRow{}, err
	}
	if tag.RowsAffected() == 0 {
		return MessageRow{}, ErrChatNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return MessageRow{}, err
	}
	return m, nil
}

// MessageWithSender pairs a message row with the current snapshot of its sender.
type MessageWithSender struct {
	Message MessageRow
	Sender  UserRow
}

// historyQuery builds the one-page history statement. The newest page is
// always fetched in descending id order so LIMIT trims the oldest rows; a
// nonzero beforeID restricts the page to ids strictly below the cursor.
func historyQuery(chatID, beforeID int64, limit int) (string, []any) {
	query := `SELECT m.id, m.chat_id, m.sender_id, m.type, m.text, m.file_key, m.file_name, m.mime_type, m.duration_ms, m.created_at,
	                 u.id, u.email, u.username, u.password_hash, u.status, u.avatar_url, u.last_seen
	          FROM messages m
	          JOIN users u ON u.id = m.sender_id
	          WHERE m.chat_id = $1`

	if beforeID > 0 {
		query += ` AND m.id < $2 ORDER BY m.id DESC LIMIT $3`
		return query, []any{chatID, beforeID, limit}
	}

	query += ` ORDER BY m.id DESC LIMIT $2`
	return query, []any{chatID, limit}
}

// ascendingByID flips a descending-fetched page into ascending id order,
// the only order history callers ever observe.
func ascendingByID(page []MessageWithSender) []MessageWithSender {
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page
}

// ListMessages returns up to limit messages of a chat with their sender rows,
// ordered by ascending identifier. A nonzero beforeID restricts the result to
// ids strictly below it, paging backward in time.
func (s *Store) ListMessages(ctx context.Context, chatID, beforeID int64, limit int) ([]MessageWithSender, error) {
	query, args := historyQuery(chatID, beforeID, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageWithSender
	for rows.Next() {
		var m MessageRow
		var u UserRow
		err := rows.Scan(
			&m.ID, &m.ChatID, &m.SenderID, &m.Kind, &m.Text, &m.FileKey, &m.FileName, &m.MimeType, &m.DurationMs, &m.CreatedAt,
			&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Status, &u.AvatarURL, &u.LastSeen,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, MessageWithSender{Message: m, Sender: u})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ascendingByID(out), nil
}
