package messages

import (
	"context"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/infra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	KindText   = "text"
	KindGif    = "gif"
	KindFile   = "file"
	KindSystem = "system"
)

type Message struct {
	ID             int64      `json:"id,string"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	AuthorID       uuid.UUID  `json:"author_id"`
	Kind           string     `json:"kind"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// ReactionState is the full reaction map of one message: emoji -> user ids.
type ReactionState map[string][]uuid.UUID

type Repository struct {
	pool      *pgxpool.Pool
	allocator *infra.SequenceAllocator
}

func NewRepository(pool *pgxpool.Pool, allocator *infra.SequenceAllocator) *Repository {
	return &Repository{
		pool:      pool,
		allocator: allocator,
	}
}

func (r *Repository) Create(ctx context.Context, msg *Message) error {
	if msg.ID == 0 {
		msg.ID = r.allocator.Next()
	}
	if msg.Kind == "" {
		msg.Kind = KindText
	}
	msg.CreatedAt = r.allocator.ExtractTimestamp(msg.ID)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, author_id, kind, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		msg.ID, msg.ConversationID, msg.AuthorID,
		msg.Kind, msg.Content, msg.CreatedAt,
	)
	return err
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Message, error) {
	msg := &Message{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, conversation_id, author_id, kind, content, created_at, edited_at, deleted_at
		FROM messages
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(
		&msg.ID, &msg.ConversationID, &msg.AuthorID,
		&msg.Kind, &msg.Content,
		&msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("message not found")
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListSince returns messages with id > afterID in ascending order. Pages
// are bounded, so callers restart from the last id they saw; the same call
// serves initial load and incremental sync.
func (r *Repository) ListSince(ctx context.Context, conversationID uuid.UUID, afterID int64, limit int) ([]*Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, author_id, kind, content, created_at, edited_at, deleted_at
		FROM messages
		WHERE conversation_id = $1 AND id > $2 AND deleted_at IS NULL
		ORDER BY id ASC
		LIMIT $3
	`, conversationID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListBefore pages history backwards from beforeID (0 means latest),
// returned newest first.
func (r *Repository) ListBefore(ctx context.Context, conversationID uuid.UUID, beforeID int64, limit int) ([]*Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if beforeID > 0 {
		rows, err = r.pool.Query(ctx, `
			SELECT id, conversation_id, author_id, kind, content, created_at, edited_at, deleted_at
			FROM messages
			WHERE conversation_id = $1 AND id < $2 AND deleted_at IS NULL
			ORDER BY id DESC
			LIMIT $3
		`, conversationID, beforeID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT id, conversation_id, author_id, kind, content, created_at, edited_at, deleted_at
			FROM messages
			WHERE conversation_id = $1 AND deleted_at IS NULL
			ORDER BY id DESC
			LIMIT $2
		`, conversationID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.AuthorID,
			&msg.Kind, &msg.Content,
			&msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *Repository) Update(ctx context.Context, msg *Message) error {
	now := time.Now()
	result, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET content = $2, edited_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`, msg.ID, msg.Content, now)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("message not found")
	}

	msg.EditedAt = &now
	return nil
}

// SoftDelete tombstones the message. Listings skip tombstones; the row is
// retained for audit.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("message not found")
	}
	return nil
}

// ToggleReaction applies the single-reaction-per-user rule inside one
// transaction. The row lock on the user's existing reaction serializes
// concurrent toggles for the same (message, user), so two emojis from one
// user can never persist. Returns the emoji now in effect ("" if the
// toggle removed it).
func (r *Repository) ToggleReaction(ctx context.Context, messageID int64, userID uuid.UUID, emoji string) (string, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1 AND deleted_at IS NULL)`,
		messageID,
	).Scan(&exists); err != nil {
		return "", false, err
	}
	if !exists {
		return "", false, errors.NotFound("message not found")
	}

	var current string
	err = tx.QueryRow(ctx, `
		SELECT emoji FROM message_reactions
		WHERE message_id = $1 AND user_id = $2
		FOR UPDATE
	`, messageID, userID).Scan(&current)

	switch {
	case err == pgx.ErrNoRows:
		if _, err := tx.Exec(ctx, `
			INSERT INTO message_reactions (message_id, user_id, emoji)
			VALUES ($1, $2, $3)
			ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji, created_at = NOW()
		`, messageID, userID, emoji); err != nil {
			return "", false, err
		}
		return emoji, false, tx.Commit(ctx)

	case err != nil:
		return "", false, err

	case current == emoji:
		if _, err := tx.Exec(ctx,
			`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2`,
			messageID, userID,
		); err != nil {
			return "", false, err
		}
		return "", true, tx.Commit(ctx)

	default:
		if _, err := tx.Exec(ctx, `
			UPDATE message_reactions SET emoji = $3, created_at = NOW()
			WHERE message_id = $1 AND user_id = $2
		`, messageID, userID, emoji); err != nil {
			return "", false, err
		}
		return emoji, false, tx.Commit(ctx)
	}
}

func (r *Repository) GetReactions(ctx context.Context, messageID int64) (ReactionState, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT emoji, user_id
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY created_at
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	state := make(ReactionState)
	for rows.Next() {
		var emoji string
		var userID uuid.UUID
		if err := rows.Scan(&emoji, &userID); err != nil {
			return nil, err
		}
		state[emoji] = append(state[emoji], userID)
	}
	return state, rows.Err()
}

// LatestID returns the newest undeleted message id in a conversation, or 0.
func (r *Repository) LatestID(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(id), 0)
		FROM messages
		WHERE conversation_id = $1 AND deleted_at IS NULL
	`, conversationID).Scan(&id)
	return id, err
}
