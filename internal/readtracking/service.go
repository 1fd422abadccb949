package readtracking

import (
	"context"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/collab-messenger/relay/internal/membership"
	"github.com/google/uuid"
)

type Service struct {
	repo    *Repository
	members *membership.Service
	hub     *events.Hub
}

func NewService(repo *Repository, members *membership.Service, hub *events.Hub) *Service {
	return &Service{repo: repo, members: members, hub: hub}
}

func (s *Service) caller(ctx context.Context) (uuid.UUID, string, error) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return uuid.Nil, "", errors.Unauthorized("user not authenticated")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, "", errors.Invalid("invalid user id")
	}
	return id, userID, nil
}

// MarkRead advances the caller's marker and tells the conversation who
// has read up to where. The stored marker never moves backwards, so the
// broadcast carries whatever the database kept.
func (s *Service) MarkRead(ctx context.Context, conversationID string, lastReadID int64) (*Marker, error) {
	callerID, callerStr, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, errors.Invalid("invalid conversation id")
	}
	if lastReadID <= 0 {
		return nil, errors.Invalid("last_read_id must be positive")
	}

	ok, err := s.members.IsParticipant(ctx, convUUID, callerID)
	if err != nil {
		return nil, errors.Internal("membership check failed", err)
	}
	if !ok {
		return nil, errors.Forbidden("not a participant of this conversation")
	}

	stored, err := s.repo.MarkRead(ctx, callerID, convUUID, lastReadID)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastToConversation(conversationID, events.New(events.TypeMessageRead, events.MessageRead{
			ConversationID: conversationID,
			UserID:         callerStr,
			LastReadID:     stored,
		}))

		count, err := s.repo.UnreadCount(ctx, callerID, convUUID)
		if err == nil {
			s.hub.BroadcastToUser(callerStr, events.New(events.TypeUnreadUpdated, events.UnreadUpdated{
				ConversationID: conversationID,
				UnreadCount:    count,
			}))
		}
	}

	return &Marker{
		UserID:         callerID,
		ConversationID: convUUID,
		LastReadID:     stored,
	}, nil
}

func (s *Service) Marker(ctx context.Context, conversationID string) (*Marker, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, errors.Invalid("invalid conversation id")
	}
	return s.repo.Get(ctx, callerID, convUUID)
}

func (s *Service) UnreadCount(ctx context.Context, conversationID string) (int, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return 0, err
	}
	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return 0, errors.Invalid("invalid conversation id")
	}
	ok, err := s.members.IsParticipant(ctx, convUUID, callerID)
	if err != nil {
		return 0, errors.Internal("membership check failed", err)
	}
	if !ok {
		return 0, errors.Forbidden("not a participant of this conversation")
	}
	return s.repo.UnreadCount(ctx, callerID, convUUID)
}

// Readers reports which participants have read a given message.
func (s *Service) Readers(ctx context.Context, conversationID string, messageID int64) ([]uuid.UUID, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, errors.Invalid("invalid conversation id")
	}
	ok, err := s.members.IsParticipant(ctx, convUUID, callerID)
	if err != nil {
		return nil, errors.Internal("membership check failed", err)
	}
	if !ok {
		return nil, errors.Forbidden("not a participant of this conversation")
	}
	return s.repo.ReadersAt(ctx, convUUID, messageID)
}
