package typing

import (
	"context"
	"time"

	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/collab-messenger/relay/internal/membership"
	"github.com/google/uuid"
)

type Service struct {
	repo    *Repository
	members *membership.Service
	hub     *events.Hub
	stopCh  chan struct{}
}

func NewService(repo *Repository, members *membership.Service, hub *events.Hub) *Service {
	s := &Service{
		repo:    repo,
		members: members,
		hub:     hub,
		stopCh:  make(chan struct{}),
	}
	go s.runSweeper()
	return s
}

// NotifyTyping refreshes the caller's indicator and tells the
// conversation. Clients are expected to re-send while typing continues.
func (s *Service) NotifyTyping(ctx context.Context, userID, conversationID uuid.UUID) error {
	ok, err := s.members.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return errors.Internal("membership check failed", err)
	}
	if !ok {
		return errors.Forbidden("not a participant of this conversation")
	}

	s.repo.Set(userID, conversationID)

	if s.hub != nil {
		s.hub.BroadcastToConversation(conversationID.String(), events.New(events.TypeTyping, events.Typing{
			ConversationID: conversationID.String(),
			UserID:         userID.String(),
		}))
	}
	return nil
}

func (s *Service) StopTyping(userID, conversationID uuid.UUID) {
	s.repo.Clear(userID, conversationID)
}

func (s *Service) ActiveTypers(conversationID uuid.UUID) []Indicator {
	return s.repo.List(conversationID)
}

func (s *Service) runSweeper() {
	ticker := time.NewTicker(TypingDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.repo.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Service) Stop() {
	close(s.stopCh)
}
