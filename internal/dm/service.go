package dm

import (
	"context"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/google/uuid"
)

// ParticipantCacheInvalidator drops cached membership entries when a
// conversation goes away.
type ParticipantCacheInvalidator interface {
	InvalidateParticipant(ctx context.Context, conversationID, userID uuid.UUID)
}

type Service struct {
	repo       *Repository
	hub        *events.Hub
	invalidate ParticipantCacheInvalidator
}

func NewService(repo *Repository, hub *events.Hub, invalidate ParticipantCacheInvalidator) *Service {
	return &Service{repo: repo, hub: hub, invalidate: invalidate}
}

// Open finds or creates the direct conversation with the other user.
// Calling it twice, from either side, yields the same conversation.
func (s *Service) Open(ctx context.Context, otherUserID string) (*Conversation, bool, error) {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return nil, false, errors.Unauthorized("user not authenticated")
	}

	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return nil, false, errors.Invalid("invalid user id")
	}
	otherUUID, err := uuid.Parse(otherUserID)
	if err != nil {
		return nil, false, errors.Invalid("invalid user id")
	}
	if callerUUID == otherUUID {
		return nil, false, errors.Invalid("cannot open a direct conversation with yourself")
	}

	convID, created, err := s.repo.GetOrCreate(ctx, callerUUID, otherUUID)
	if err != nil {
		return nil, false, err
	}

	conv, err := s.repo.Get(ctx, convID, callerUUID)
	if err != nil {
		return nil, false, err
	}

	if s.hub != nil {
		s.hub.Subscribe(callerID, convID.String())
		if created {
			s.hub.Subscribe(otherUserID, convID.String())
		}
	}
	return conv, created, nil
}

func (s *Service) List(ctx context.Context) ([]*Conversation, error) {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return nil, errors.Unauthorized("user not authenticated")
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}
	return s.repo.ListByUser(ctx, callerUUID)
}

// Close tombstones the DM for both sides. Reopening later creates a new
// conversation with an empty log.
func (s *Service) Close(ctx context.Context, conversationID string) error {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return errors.Unauthorized("user not authenticated")
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}
	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return errors.Invalid("invalid conversation id")
	}

	conv, err := s.repo.Get(ctx, convUUID, callerUUID)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, convUUID, callerUUID); err != nil {
		return err
	}

	// The cached membership check would keep authorizing appends for the
	// TTL otherwise.
	if s.invalidate != nil {
		s.invalidate.InvalidateParticipant(ctx, convUUID, callerUUID)
		s.invalidate.InvalidateParticipant(ctx, convUUID, conv.OtherUserID)
	}

	if s.hub != nil {
		s.hub.BroadcastToConversation(conversationID, events.New(events.TypeMemberLeft, events.MemberChange{
			ConversationID: conversationID,
			UserID:         callerID,
		}))
		s.hub.Unsubscribe(callerID, conversationID)
		s.hub.Unsubscribe(conv.OtherUserID.String(), conversationID)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return nil, errors.Unauthorized("user not authenticated")
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}
	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, errors.Invalid("invalid conversation id")
	}
	return s.repo.Get(ctx, convUUID, callerUUID)
}
