package identity

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/infra/cache"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type User struct {
	ID          uuid.UUID  `json:"id"`
	Handle      string     `json:"handle"`
	DisplayName string     `json:"display_name"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"-"`
}

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

const (
	userCacheTTL    = 5 * time.Minute
	userByHandleTTL = 5 * time.Minute
)

func (r *Repository) userCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id.String())
}

func (r *Repository) userHandleCacheKey(handle string) string {
	return fmt.Sprintf("user:handle:%s", handle)
}

const userColumns = `id, handle, display_name, email, phone, avatar_url, status, created_at, deleted_at`

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Handle, &user.DisplayName,
		&user.Email, &user.Phone, &user.AvatarURL,
		&user.Status, &user.CreatedAt, &user.DeletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, handle, display_name, email, phone, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Handle, user.DisplayName,
		user.Email, user.Phone, user.AvatarURL,
	).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Conflict("handle already taken")
		}
		return err
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, r.userCacheKey(user.ID), user, userCacheTTL)
		_ = r.cache.Set(ctx, r.userHandleCacheKey(user.Handle), user.ID, userByHandleTTL)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	if r.cache != nil {
		var cached User
		if err := r.cache.Get(ctx, r.userCacheKey(id), &cached); err == nil {
			return &cached, nil
		}
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 AND deleted_at IS NULL`, userColumns)
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, r.userCacheKey(id), user, userCacheTTL)
	}
	return user, nil
}

func (r *Repository) GetByHandle(ctx context.Context, handle string) (*User, error) {
	if r.cache != nil {
		var userID uuid.UUID
		if err := r.cache.Get(ctx, r.userHandleCacheKey(handle), &userID); err == nil {
			return r.GetByID(ctx, userID)
		}
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE handle = $1 AND deleted_at IS NULL`, userColumns)
	user, err := scanUser(r.pool.QueryRow(ctx, query, handle))
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, r.userCacheKey(user.ID), user, userCacheTTL)
		_ = r.cache.Set(ctx, r.userHandleCacheKey(handle), user.ID, userByHandleTTL)
	}
	return user, nil
}

// RenameHandle is a single-row update. References elsewhere are by user id,
// so readers can never observe a half-migrated rename; the unique index
// turns a duplicate into Conflict.
func (r *Repository) RenameHandle(ctx context.Context, userID uuid.UUID, newHandle string) (string, error) {
	var oldHandle string
	err := r.pool.QueryRow(ctx, `
		UPDATE users u
		SET handle = $2
		FROM (SELECT handle FROM users WHERE id = $1 FOR UPDATE) prev
		WHERE u.id = $1 AND u.deleted_at IS NULL
		RETURNING prev.handle
	`, userID, newHandle).Scan(&oldHandle)

	if err == pgx.ErrNoRows {
		return "", errors.NotFound("user not found")
	}
	if err != nil {
		if isUniqueViolation(err) {
			return "", errors.Conflict("handle already taken")
		}
		return "", err
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx,
			r.userCacheKey(userID),
			r.userHandleCacheKey(oldHandle),
			r.userHandleCacheKey(newHandle),
		)
	}
	return oldHandle, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET display_name = $2, email = $3, phone = $4, avatar_url = $5
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query,
		user.ID, user.DisplayName, user.Email, user.Phone, user.AvatarURL,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user not found")
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx, r.userCacheKey(user.ID))
	}
	return nil
}

func (r *Repository) UpdateStatus(ctx context.Context, userID uuid.UUID, status string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE users SET status = $2 WHERE id = $1 AND deleted_at IS NULL`,
		userID, status,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("user not found")
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx, r.userCacheKey(userID))
	}
	return nil
}

func (r *Repository) SearchByHandle(ctx context.Context, prefix string, limit int) ([]*User, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE handle ILIKE $1 || '%%' AND deleted_at IS NULL
		ORDER BY handle
		LIMIT $2
	`, userColumns)

	rows, err := r.pool.Query(ctx, query, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		if err := rows.Scan(
			&user.ID, &user.Handle, &user.DisplayName,
			&user.Email, &user.Phone, &user.AvatarURL,
			&user.Status, &user.CreatedAt, &user.DeletedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
