package identity

import (
	"context"
	"regexp"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/google/uuid"
)

var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

type Service struct {
	repo *Repository
	hub  *events.Hub
}

func NewService(repo *Repository, hub *events.Hub) *Service {
	return &Service{repo: repo, hub: hub}
}

// Register records a user the external auth provider has already verified.
// The id and email come from the provider; only the handle is chosen here.
func (s *Service) Register(ctx context.Context, userID, handle, email string) (*User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}
	if !handlePattern.MatchString(handle) {
		return nil, errors.Invalid("handle must be 3-32 characters of letters, digits, _ . -")
	}

	user := &User{
		ID:          id,
		Handle:      handle,
		DisplayName: handle,
		Email:       email,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) ResolveHandle(ctx context.Context, handle string) (*User, error) {
	if handle == "" {
		return nil, errors.Invalid("handle is required")
	}
	return s.repo.GetByHandle(ctx, handle)
}

func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) RenameHandle(ctx context.Context, newHandle string) (*User, error) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return nil, errors.Unauthorized("user not authenticated")
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}
	if !handlePattern.MatchString(newHandle) {
		return nil, errors.Invalid("handle must be 3-32 characters of letters, digits, _ . -")
	}

	existing, err := s.repo.GetByHandle(ctx, newHandle)
	if err == nil && existing.ID != id {
		return nil, errors.Conflict("handle already taken")
	}
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}

	if _, err := s.repo.RenameHandle(ctx, id, newHandle); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastToUser(userID, events.New(events.TypeProfileUpdated, events.ProfileUpdated{
			UserID: userID,
			Handle: user.Handle,
		}))
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, displayName, email, phone, avatarURL string) (*User, error) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return nil, errors.Unauthorized("user not authenticated")
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if displayName != "" {
		user.DisplayName = displayName
	}
	if email != "" {
		user.Email = email
	}
	if phone != "" {
		user.Phone = phone
	}
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Search(ctx context.Context, prefix string, limit int) ([]*User, error) {
	if prefix == "" {
		return nil, errors.Invalid("search prefix is required")
	}
	return s.repo.SearchByHandle(ctx, prefix, limit)
}
