package friends

import (
	"context"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/google/uuid"
)

type Service struct {
	repo *Repository
	hub  *events.Hub
}

func NewService(repo *Repository, hub *events.Hub) *Service {
	return &Service{repo: repo, hub: hub}
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

func (s *Service) SendRequest(ctx context.Context, toUserID string) (*Request, error) {
	callerID, callerStr, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	toUUID, err := uuid.Parse(toUserID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}
	if toUUID == callerID {
		return nil, errors.Invalid("cannot send a friend request to yourself")
	}

	areFriends, err := s.repo.AreFriends(ctx, callerID, toUUID)
	if err != nil {
		return nil, err
	}
	if areFriends {
		return nil, errors.Conflict("already friends")
	}

	existing, err := s.repo.GetRequestBetween(ctx, callerID, toUUID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == StatusPending {
		if existing.FromUserID == callerID {
			return nil, errors.Conflict("friend request already sent")
		}
		// The other side already asked; accepting beats a duplicate.
		return s.accept(ctx, existing, callerStr)
	}

	req, err := s.repo.CreateRequest(ctx, callerID, toUUID)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastToUser(toUserID, events.New(events.TypeFriendRequestCreated, events.FriendRequestPayload{
			RequestID:  req.ID.String(),
			FromUserID: callerStr,
			ToUserID:   toUserID,
			Status:     req.Status,
		}))
	}
	return req, nil
}

func (s *Service) Accept(ctx context.Context, requestID string) (*Request, error) {
	callerID, callerStr, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	reqUUID, err := uuid.Parse(requestID)
	if err != nil {
		return nil, errors.Invalid("invalid request id")
	}

	req, err := s.repo.GetRequest(ctx, reqUUID)
	if err != nil {
		return nil, err
	}
	if req.ToUserID != callerID {
		return nil, errors.Forbidden("only the recipient can accept a request")
	}
	if req.Status != StatusPending {
		return nil, errors.Conflict("request is no longer pending")
	}
	return s.accept(ctx, req, callerStr)
}

func (s *Service) accept(ctx context.Context, req *Request, _ string) (*Request, error) {
	if err := s.repo.UpdateRequestStatus(ctx, req.ID, StatusAccepted); err != nil {
		return nil, err
	}
	if err := s.repo.CreateFriendship(ctx, req.FromUserID, req.ToUserID); err != nil {
		return nil, err
	}
	req.Status = StatusAccepted

	if s.hub != nil {
		payload := events.FriendRequestPayload{
			RequestID:  req.ID.String(),
			FromUserID: req.FromUserID.String(),
			ToUserID:   req.ToUserID.String(),
			Status:     StatusAccepted,
		}
		s.hub.BroadcastToUser(req.FromUserID.String(), events.New(events.TypeFriendRequestUpdated, payload))
		s.hub.BroadcastToUser(req.ToUserID.String(), events.New(events.TypeFriendRequestUpdated, payload))
	}
	return req, nil
}

func (s *Service) Reject(ctx context.Context, requestID string) error {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return err
	}
	reqUUID, err := uuid.Parse(requestID)
	if err != nil {
		return errors.Invalid("invalid request id")
	}

	req, err := s.repo.GetRequest(ctx, reqUUID)
	if err != nil {
		return err
	}
	if req.ToUserID != callerID {
		return errors.Forbidden("only the recipient can reject a request")
	}
	if req.Status != StatusPending {
		return errors.Conflict("request is no longer pending")
	}

	if err := s.repo.UpdateRequestStatus(ctx, reqUUID, StatusRejected); err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastToUser(req.FromUserID.String(), events.New(events.TypeFriendRequestUpdated, events.FriendRequestPayload{
			RequestID:  req.ID.String(),
			FromUserID: req.FromUserID.String(),
			ToUserID:   req.ToUserID.String(),
			Status:     StatusRejected,
		}))
	}
	return nil
}

func (s *Service) Remove(ctx context.Context, friendID string) error {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return err
	}
	friendUUID, err := uuid.Parse(friendID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}
	return s.repo.DeleteFriendship(ctx, callerID, friendUUID)
}

func (s *Service) List(ctx context.Context) ([]*Friend, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListFriends(ctx, callerID)
}

func (s *Service) ListIncoming(ctx context.Context) ([]*RequestWithUser, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListIncoming(ctx, callerID)
}

func (s *Service) ListOutgoing(ctx context.Context) ([]*RequestWithUser, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOutgoing(ctx, callerID)
}
