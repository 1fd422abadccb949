package friends

import (
	"context"
	"fmt"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/infra/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

type Request struct {
	ID         uuid.UUID `json:"id"`
	FromUserID uuid.UUID `json:"from_user_id"`
	ToUserID   uuid.UUID `json:"to_user_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RequestWithUser carries the counterpart's profile for list views.
type RequestWithUser struct {
	Request
	FromHandle  string `json:"from_handle"`
	FromDisplay string `json:"from_display_name"`
	ToHandle    string `json:"to_handle"`
	ToDisplay   string `json:"to_display_name"`
}

type Friend struct {
	UserID       uuid.UUID `json:"user_id"`
	Handle       string    `json:"handle"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Status       string    `json:"status"`
	FriendsSince time.Time `json:"friends_since"`
}

const (
	friendListCacheTTL = 2 * time.Minute
	areFriendsCacheTTL = 5 * time.Minute
)

type Repository struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func NewRepositoryWithCache(pool *pgxpool.Pool, c *cache.Cache) *Repository {
	return &Repository{pool: pool, cache: c}
}

func (r *Repository) friendListCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("friends:%s", userID.String())
}

func (r *Repository) areFriendsCacheKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return fmt.Sprintf("are_friends:%s:%s", a.String(), b.String())
}

func (r *Repository) CreateRequest(ctx context.Context, fromUserID, toUserID uuid.UUID) (*Request, error) {
	req := &Request{
		ID:         uuid.New(),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     StatusPending,
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO friend_requests (id, from_user_id, to_user_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_user_id, to_user_id)
		DO UPDATE SET status = 'pending', updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, req.ID, req.FromUserID, req.ToUserID, req.Status).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, errors.Internal("failed to create friend request", err)
	}

	r.invalidate(ctx, fromUserID, toUserID)
	return req, nil
}

func (r *Repository) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	req := &Request{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at, updated_at
		FROM friend_requests
		WHERE id = $1
	`, id).Scan(&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("friend request not found")
	}
	if err != nil {
		return nil, errors.Internal("failed to get friend request", err)
	}
	return req, nil
}

// GetRequestBetween returns the latest request between two users in
// either direction, or nil when none exists.
func (r *Repository) GetRequestBetween(ctx context.Context, userA, userB uuid.UUID) (*Request, error) {
	req := &Request{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, from_user_id, to_user_id, status, created_at, updated_at
		FROM friend_requests
		WHERE (from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1)
		ORDER BY created_at DESC
		LIMIT 1
	`, userA, userB).Scan(&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Internal("failed to look up friend request", err)
	}
	return req, nil
}

func (r *Repository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE friend_requests SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return errors.Internal("failed to update friend request", err)
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("friend request not found")
	}
	return nil
}

func (r *Repository) CreateFriendship(ctx context.Context, a, b uuid.UUID) error {
	if a.String() > b.String() {
		a, b = b, a
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO friendships (user_id1, user_id2)
		VALUES ($1, $2)
		ON CONFLICT (user_id1, user_id2) DO NOTHING
	`, a, b)
	if err != nil {
		return errors.Internal("failed to create friendship", err)
	}
	r.invalidate(ctx, a, b)
	return nil
}

func (r *Repository) DeleteFriendship(ctx context.Context, a, b uuid.UUID) error {
	if a.String() > b.String() {
		a, b = b, a
	}
	result, err := r.pool.Exec(ctx, `
		DELETE FROM friendships WHERE user_id1 = $1 AND user_id2 = $2
	`, a, b)
	if err != nil {
		return errors.Internal("failed to delete friendship", err)
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("friendship not found")
	}
	r.invalidate(ctx, a, b)
	return nil
}

func (r *Repository) AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if r.cache != nil {
		var areFriends bool
		if err := r.cache.Get(ctx, r.areFriendsCacheKey(a, b), &areFriends); err == nil {
			return areFriends, nil
		}
	}

	x, y := a, b
	if x.String() > y.String() {
		x, y = y, x
	}

	var areFriends bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id1 = $1 AND user_id2 = $2)
	`, x, y).Scan(&areFriends)
	if err != nil {
		return false, errors.Internal("failed to check friendship", err)
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, r.areFriendsCacheKey(a, b), areFriends, areFriendsCacheTTL)
	}
	return areFriends, nil
}

func (r *Repository) ListFriends(ctx context.Context, userID uuid.UUID) ([]*Friend, error) {
	if r.cache != nil {
		var cached []*Friend
		if err := r.cache.Get(ctx, r.friendListCacheKey(userID), &cached); err == nil {
			return cached, nil
		}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.handle, u.display_name, COALESCE(u.avatar_url, ''),
		       COALESCE(u.status, 'offline'), f.created_at
		FROM friendships f
		JOIN users u ON (
			CASE
				WHEN f.user_id1 = $1 THEN f.user_id2 = u.id
				ELSE f.user_id1 = u.id
			END
		)
		WHERE f.user_id1 = $1 OR f.user_id2 = $1
		ORDER BY u.display_name
	`, userID)
	if err != nil {
		return nil, errors.Internal("failed to list friends", err)
	}
	defer rows.Close()

	var friends []*Friend
	for rows.Next() {
		f := &Friend{}
		if err := rows.Scan(
			&f.UserID, &f.Handle, &f.DisplayName, &f.AvatarURL,
			&f.Status, &f.FriendsSince,
		); err != nil {
			return nil, errors.Internal("failed to scan friend", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.cache != nil && len(friends) > 0 {
		_ = r.cache.Set(ctx, r.friendListCacheKey(userID), friends, friendListCacheTTL)
	}
	return friends, nil
}

// FriendIDs is the lightweight form used by presence fan-out.
func (r *Repository) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT CASE WHEN user_id1 = $1 THEN user_id2 ELSE user_id1 END
		FROM friendships WHERE user_id1 = $1 OR user_id2 = $1
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

func (r *Repository) ListIncoming(ctx context.Context, userID uuid.UUID) ([]*RequestWithUser, error) {
	return r.listRequests(ctx, `fr.to_user_id = $1`, userID)
}

func (r *Repository) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]*RequestWithUser, error) {
	return r.listRequests(ctx, `fr.from_user_id = $1`, userID)
}

func (r *Repository) listRequests(ctx context.Context, where string, userID uuid.UUID) ([]*RequestWithUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			fr.id, fr.from_user_id, fr.to_user_id, fr.status, fr.created_at, fr.updated_at,
			from_u.handle, from_u.display_name,
			to_u.handle, to_u.display_name
		FROM friend_requests fr
		JOIN users from_u ON fr.from_user_id = from_u.id
		JOIN users to_u ON fr.to_user_id = to_u.id
		WHERE `+where+` AND fr.status = 'pending'
		ORDER BY fr.created_at DESC
	`, userID)
	if err != nil {
		return nil, errors.Internal("failed to list friend requests", err)
	}
	defer rows.Close()

	var requests []*RequestWithUser
	for rows.Next() {
		req := &RequestWithUser{}
		if err := rows.Scan(
			&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt, &req.UpdatedAt,
			&req.FromHandle, &req.FromDisplay,
			&req.ToHandle, &req.ToDisplay,
		); err != nil {
			return nil, errors.Internal("failed to scan friend request", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// CountPending is used by the notification summary.
func (r *Repository) CountPending(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM friend_requests
		WHERE to_user_id = $1 AND status = 'pending'
	`, userID).Scan(&count)
	return count, err
}

func (r *Repository) invalidate(ctx context.Context, a, b uuid.UUID) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx,
		r.friendListCacheKey(a),
		r.friendListCacheKey(b),
		r.areFriendsCacheKey(a, b),
	)
}
