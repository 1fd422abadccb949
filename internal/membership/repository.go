package membership

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	KindChannel = "channel"
	KindDM      = "dm"
)

type Team struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type TeamMember struct {
	TeamID   uuid.UUID `json:"team_id"`
	UserID   uuid.UUID `json:"user_id"`
	Handle   string    `json:"handle"`
	JoinedAt time.Time `json:"joined_at"`
}

type Conversation struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	TeamID    *uuid.UUID `json:"team_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	DMUser1   *uuid.UUID `json:"dm_user1,omitempty"`
	DMUser2   *uuid.UUID `json:"dm_user2,omitempty"`
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type Participant struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Muted          bool      `json:"muted"`
	JoinedAt       time.Time `json:"joined_at"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateTeam(ctx context.Context, team *Team) error {
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}

	return r.pool.QueryRow(ctx, `
		INSERT INTO teams (id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, team.ID, team.Name, team.OwnerID).Scan(&team.CreatedAt)
}

func (r *Repository) GetTeam(ctx context.Context, id uuid.UUID) (*Team, error) {
	team := &Team{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at, deleted_at
		FROM teams
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.DeletedAt)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("team not found")
	}
	return team, err
}

// SoftDeleteTeam tombstones the team and every child channel in one
// transaction, so a reader sees either the team with all channels or
// neither.
func (r *Repository) SoftDeleteTeam(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now()
	result, err := tx.Exec(ctx,
		`UPDATE teams SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, now,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("team not found")
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET deleted_at = $2 WHERE team_id = $1 AND deleted_at IS NULL`,
		id, now,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListTeamsForUser(ctx context.Context, userID uuid.UUID) ([]*Team, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.name, t.owner_id, t.created_at, t.deleted_at
		FROM teams t
		JOIN team_members tm ON tm.team_id = t.id
		WHERE tm.user_id = $1 AND t.deleted_at IS NULL
		ORDER BY t.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		team := &Team{}
		if err := rows.Scan(&team.ID, &team.Name, &team.OwnerID, &team.CreatedAt, &team.DeletedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (r *Repository) AddTeamMember(ctx context.Context, teamID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO team_members (team_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (team_id, user_id) DO NOTHING
	`, teamID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23503" {
			return errors.NotFound("team or user not found")
		}
	}
	return err
}

// RemoveTeamMember drops the membership row and, in the same transaction,
// the user's participant rows in every child channel.
func (r *Repository) RemoveTeamMember(ctx context.Context, teamID, userID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	result, err := tx.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("not a team member")
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM conversation_participants cp
		USING conversations c
		WHERE cp.conversation_id = c.id
		  AND c.team_id = $1
		  AND cp.user_id = $2
	`, teamID, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]*TeamMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tm.team_id, tm.user_id, u.handle, tm.joined_at
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.joined_at
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*TeamMember
	for rows.Next() {
		m := &TeamMember{}
		if err := rows.Scan(&m.TeamID, &m.UserID, &m.Handle, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *Repository) IsTeamMember(ctx context.Context, teamID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)
	`, teamID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) CreateChannel(ctx context.Context, conv *Conversation, participants []uuid.UUID) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.Kind = KindChannel

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := tx.QueryRow(ctx, `
		INSERT INTO conversations (id, kind, team_id, title, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, conv.ID, conv.Kind, conv.TeamID, conv.Title, conv.CreatedBy).Scan(&conv.CreatedAt); err != nil {
		return err
	}

	for _, userID := range participants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, conv.ID, userID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	conv := &Conversation{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, kind, team_id, title, dm_user1, dm_user2, created_by, created_at, deleted_at
		FROM conversations
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(
		&conv.ID, &conv.Kind, &conv.TeamID, &conv.Title,
		&conv.DMUser1, &conv.DMUser2, &conv.CreatedBy,
		&conv.CreatedAt, &conv.DeletedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("conversation not found")
	}
	return conv, err
}

func (r *Repository) ListChannels(ctx context.Context, teamID uuid.UUID) ([]*Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, team_id, title, dm_user1, dm_user2, created_by, created_at, deleted_at
		FROM conversations
		WHERE team_id = $1 AND kind = 'channel' AND deleted_at IS NULL
		ORDER BY created_at
	`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*Conversation
	for rows.Next() {
		conv := &Conversation{}
		if err := rows.Scan(
			&conv.ID, &conv.Kind, &conv.TeamID, &conv.Title,
			&conv.DMUser1, &conv.DMUser2, &conv.CreatedBy,
			&conv.CreatedAt, &conv.DeletedAt,
		); err != nil {
			return nil, err
		}
		channels = append(channels, conv)
	}
	return channels, rows.Err()
}

func (r *Repository) AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`, conversationID, userID)
	return err
}

func (r *Repository) RemoveParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("not a participant")
	}
	return nil
}

func (r *Repository) ListParticipants(ctx context.Context, conversationID uuid.UUID) ([]*Participant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id, user_id, muted, joined_at
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY joined_at
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*Participant
	for rows.Next() {
		p := &Participant{}
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Muted, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *Repository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM conversation_participants cp
			JOIN conversations c ON c.id = cp.conversation_id
			WHERE cp.conversation_id = $1 AND cp.user_id = $2 AND c.deleted_at IS NULL
		)
	`, conversationID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) SetMuted(ctx context.Context, conversationID, userID uuid.UUID, muted bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE conversation_participants
		SET muted = $3
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID, muted)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("not a participant")
	}
	return nil
}

func (r *Repository) ListConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cp.conversation_id
		FROM conversation_participants cp
		JOIN conversations c ON c.id = cp.conversation_id
		WHERE cp.user_id = $1 AND c.deleted_at IS NULL
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
