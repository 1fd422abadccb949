package dm

import (
	"context"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conversation is the DM view of a conversations row with the peer joined in.
type Conversation struct {
	ID            uuid.UUID `json:"id"`
	OtherUserID   uuid.UUID `json:"other_user_id"`
	OtherHandle   string    `json:"other_handle"`
	OtherName     string    `json:"other_display_name"`
	OtherAvatar   string    `json:"other_avatar_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LatestMessage int64     `json:"latest_message_id,string"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// orderPair puts the smaller uuid first so one row represents the pair
// regardless of who initiated.
func orderPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

// GetOrCreate returns the existing DM between the two users or creates it.
// Concurrent callers race on the partial unique index; the loser retries
// the select and gets the winner's row.
func (r *Repository) GetOrCreate(ctx context.Context, userA, userB uuid.UUID) (uuid.UUID, bool, error) {
	u1, u2 := orderPair(userA, userB)

	var convID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM conversations
		WHERE kind = 'dm' AND dm_user1 = $1 AND dm_user2 = $2 AND deleted_at IS NULL
	`, u1, u2).Scan(&convID)
	if err == nil {
		return convID, false, nil
	}
	if err != pgx.ErrNoRows {
		return uuid.Nil, false, errors.Internal("failed to look up direct conversation", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, false, errors.Internal("failed to start transaction", err)
	}
	defer tx.Rollback(ctx)

	convID = uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, kind, dm_user1, dm_user2, created_by)
		VALUES ($1, 'dm', $2, $3, $4)
		ON CONFLICT (dm_user1, dm_user2) WHERE kind = 'dm' AND deleted_at IS NULL
		DO NOTHING
	`, convID, u1, u2, userA)
	if err != nil {
		return uuid.Nil, false, errors.Internal("failed to create direct conversation", err)
	}

	// Re-read inside the tx: either our row or the concurrent winner's.
	var finalID uuid.UUID
	if err := tx.QueryRow(ctx, `
		SELECT id FROM conversations
		WHERE kind = 'dm' AND dm_user1 = $1 AND dm_user2 = $2 AND deleted_at IS NULL
	`, u1, u2).Scan(&finalID); err != nil {
		return uuid.Nil, false, errors.Internal("failed to read direct conversation", err)
	}

	created := finalID == convID
	if created {
		batch := &pgx.Batch{}
		for _, uid := range []uuid.UUID{u1, u2} {
			batch.Queue(`
				INSERT INTO conversation_participants (conversation_id, user_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING
			`, finalID, uid)
		}
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return uuid.Nil, false, errors.Internal("failed to add participants", err)
			}
		}
		br.Close()
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, false, errors.Internal("failed to commit transaction", err)
	}
	return finalID, created, nil
}

// ListByUser returns the user's direct conversations with the peer's
// profile joined in, most recently active first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id,
		       u.id, u.handle, u.display_name, COALESCE(u.avatar_url, ''),
		       c.created_at,
		       COALESCE((SELECT MAX(m.id) FROM messages m
		                 WHERE m.conversation_id = c.id AND m.deleted_at IS NULL), 0)
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.dm_user1 = $1 THEN c.dm_user2 ELSE c.dm_user1 END
		WHERE c.kind = 'dm'
		  AND (c.dm_user1 = $1 OR c.dm_user2 = $1)
		  AND c.deleted_at IS NULL
		ORDER BY 7 DESC
	`, userID)
	if err != nil {
		return nil, errors.Internal("failed to list direct conversations", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv := &Conversation{}
		if err := rows.Scan(
			&conv.ID,
			&conv.OtherUserID, &conv.OtherHandle, &conv.OtherName, &conv.OtherAvatar,
			&conv.CreatedAt, &conv.LatestMessage,
		); err != nil {
			return nil, errors.Internal("failed to scan direct conversation", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// SoftDelete closes the DM for both sides. The partial unique index only
// covers live rows, so a later Open starts a fresh conversation.
func (r *Repository) SoftDelete(ctx context.Context, conversationID, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET deleted_at = NOW()
		WHERE id = $1
		  AND kind = 'dm'
		  AND (dm_user1 = $2 OR dm_user2 = $2)
		  AND deleted_at IS NULL
	`, conversationID, userID)
	if err != nil {
		return errors.Internal("failed to close direct conversation", err)
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("direct conversation not found")
	}
	return nil
}

// Get returns the DM only if the user is one of the pair.
func (r *Repository) Get(ctx context.Context, conversationID, userID uuid.UUID) (*Conversation, error) {
	conv := &Conversation{}
	err := r.pool.QueryRow(ctx, `
		SELECT c.id,
		       u.id, u.handle, u.display_name, COALESCE(u.avatar_url, ''),
		       c.created_at
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.dm_user1 = $2 THEN c.dm_user2 ELSE c.dm_user1 END
		WHERE c.id = $1
		  AND c.kind = 'dm'
		  AND (c.dm_user1 = $2 OR c.dm_user2 = $2)
		  AND c.deleted_at IS NULL
	`, conversationID, userID).Scan(
		&conv.ID,
		&conv.OtherUserID, &conv.OtherHandle, &conv.OtherName, &conv.OtherAvatar,
		&conv.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("direct conversation not found")
	}
	if err != nil {
		return nil, errors.Internal("failed to get direct conversation", err)
	}
	return conv, nil
}
