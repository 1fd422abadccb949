package notifications

import (
	"context"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/friends"
	"github.com/collab-messenger/relay/internal/messages"
	"github.com/collab-messenger/relay/internal/readtracking"
	"github.com/google/uuid"
)

// Summary is everything an app badge needs in one round trip.
type Summary struct {
	Conversations         []*ConversationSummary `json:"conversations"`
	TotalUnread           int                    `json:"total_unread"`
	PendingFriendRequests int                    `json:"pending_friend_requests"`
}

type Service struct {
	repo       *Repository
	msgsRepo   *messages.Repository
	reads      *readtracking.Service
	friendRepo *friends.Repository
	dispatcher *Dispatcher
}

func NewService(
	repo *Repository,
	msgsRepo *messages.Repository,
	reads *readtracking.Service,
	friendRepo *friends.Repository,
	dispatcher *Dispatcher,
) *Service {
	return &Service{
		repo:       repo,
		msgsRepo:   msgsRepo,
		reads:      reads,
		friendRepo: friendRepo,
		dispatcher: dispatcher,
	}
}

func (s *Service) caller(ctx context.Context) (uuid.UUID, error) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return uuid.Nil, errors.Unauthorized("user not authenticated")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, errors.Invalid("invalid user id")
	}
	return id, nil
}

func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	callerID, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	conversations, err := s.repo.UnreadSummary(ctx, callerID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, c := range conversations {
		total += c.UnreadCount
	}

	pending, err := s.friendRepo.CountPending(ctx, callerID)
	if err != nil {
		return nil, errors.Internal("failed to count pending requests", err)
	}

	if conversations == nil {
		conversations = []*ConversationSummary{}
	}
	return &Summary{
		Conversations:         conversations,
		TotalUnread:           total,
		PendingFriendRequests: pending,
	}, nil
}

// Acknowledge clears the badge for a conversation by advancing the read
// marker to the log's tip.
func (s *Service) Acknowledge(ctx context.Context, conversationID string) error {
	if _, err := s.caller(ctx); err != nil {
		return err
	}

	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return errors.Invalid("invalid conversation id")
	}

	latest, err := s.msgsRepo.LatestID(ctx, convUUID)
	if err != nil {
		return err
	}
	if latest == 0 {
		// Nothing written yet, nothing to acknowledge.
		return nil
	}

	_, err = s.reads.MarkRead(ctx, conversationID, latest)
	return err
}
