package notifications

import (
	"context"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationSummary is one badge line: how much is unread in one
// conversation and what to show for it.
type ConversationSummary struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Kind           string    `json:"kind"`
	Title          string    `json:"title,omitempty"`
	UnreadCount    int       `json:"unread_count"`
	LastMessageID  int64     `json:"last_message_id,string"`
	LastSenderID   uuid.UUID `json:"last_sender_id"`
	LastSender     string    `json:"last_sender"`
	LastPreview    string    `json:"last_preview"`
	LastSentAt     time.Time `json:"last_sent_at"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UnreadSummary lists every conversation where the user has unread
// messages, skipping muted conversations and the user's own messages.
func (r *Repository) UnreadSummary(ctx context.Context, userID uuid.UUID) ([]*ConversationSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.kind, COALESCE(c.title, ''),
		       COUNT(m.id),
		       MAX(m.id),
		       last.author_id, last_u.handle, LEFT(last.content, 120), last.created_at
		FROM conversation_participants cp
		JOIN conversations c ON c.id = cp.conversation_id AND c.deleted_at IS NULL
		JOIN messages m ON m.conversation_id = c.id
			AND m.deleted_at IS NULL
			AND m.author_id <> cp.user_id
			AND m.id > COALESCE((
				SELECT rm.last_read_id FROM read_markers rm
				WHERE rm.user_id = cp.user_id AND rm.conversation_id = c.id
			), 0)
		JOIN LATERAL (
			SELECT m2.author_id, m2.content, m2.created_at
			FROM messages m2
			WHERE m2.conversation_id = c.id AND m2.deleted_at IS NULL
			ORDER BY m2.id DESC
			LIMIT 1
		) last ON TRUE
		JOIN users last_u ON last_u.id = last.author_id
		WHERE cp.user_id = $1 AND NOT cp.muted
		GROUP BY c.id, c.kind, c.title, last.author_id, last_u.handle, last.content, last.created_at
		ORDER BY MAX(m.id) DESC
	`, userID)
	if err != nil {
		return nil, errors.Internal("failed to build unread summary", err)
	}
	defer rows.Close()

	var summaries []*ConversationSummary
	for rows.Next() {
		s := &ConversationSummary{}
		if err := rows.Scan(
			&s.ConversationID, &s.Kind, &s.Title,
			&s.UnreadCount, &s.LastMessageID,
			&s.LastSenderID, &s.LastSender, &s.LastPreview, &s.LastSentAt,
		); err != nil {
			return nil, errors.Internal("failed to scan unread summary", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
