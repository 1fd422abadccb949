package readtracking

import (
	"context"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Marker struct {
	UserID         uuid.UUID `json:"user_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	LastReadID     int64     `json:"last_read_id,string"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MarkRead advances the marker monotonically. A stale or replayed call
// with a lower id leaves the stored marker untouched.
func (r *Repository) MarkRead(ctx context.Context, userID, conversationID uuid.UUID, lastReadID int64) (int64, error) {
	var stored int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO read_markers (user_id, conversation_id, last_read_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, conversation_id)
		DO UPDATE SET
			last_read_id = GREATEST(read_markers.last_read_id, EXCLUDED.last_read_id),
			updated_at = NOW()
		RETURNING last_read_id
	`, userID, conversationID, lastReadID).Scan(&stored)
	if err != nil {
		return 0, errors.Internal("failed to update read marker", err)
	}
	return stored, nil
}

func (r *Repository) Get(ctx context.Context, userID, conversationID uuid.UUID) (*Marker, error) {
	marker := &Marker{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, conversation_id, last_read_id, updated_at
		FROM read_markers
		WHERE user_id = $1 AND conversation_id = $2
	`, userID, conversationID).Scan(
		&marker.UserID, &marker.ConversationID, &marker.LastReadID, &marker.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		// No marker yet means nothing read.
		return &Marker{UserID: userID, ConversationID: conversationID}, nil
	}
	if err != nil {
		return nil, errors.Internal("failed to get read marker", err)
	}
	return marker, nil
}

// UnreadCount counts live messages past the marker, excluding the user's
// own messages.
func (r *Repository) UnreadCount(ctx context.Context, userID, conversationID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages m
		WHERE m.conversation_id = $2
		  AND m.deleted_at IS NULL
		  AND m.author_id <> $1
		  AND m.id > COALESCE((
			SELECT last_read_id FROM read_markers
			WHERE user_id = $1 AND conversation_id = $2
		  ), 0)
	`, userID, conversationID).Scan(&count)
	if err != nil {
		return 0, errors.Internal("failed to count unread messages", err)
	}
	return count, nil
}

// ReadersAt returns ids of participants whose marker covers the message.
func (r *Repository) ReadersAt(ctx context.Context, conversationID uuid.UUID, messageID int64) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id FROM read_markers
		WHERE conversation_id = $1 AND last_read_id >= $2
	`, conversationID, messageID)
	if err != nil {
		return nil, errors.Internal("failed to list readers", err)
	}
	defer rows.Close()

	var readers []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Internal("failed to scan reader", err)
		}
		readers = append(readers, id)
	}
	return readers, rows.Err()
}
