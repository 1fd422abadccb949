package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/collab-messenger/relay/internal/infra/cache"
	"github.com/collab-messenger/relay/internal/messages"
	"github.com/google/uuid"
)

const membershipCacheTTL = 30 * time.Second

type Service struct {
	repo     *Repository
	msgsRepo *messages.Repository
	hub      *events.Hub
	cache    *cache.AsidePattern
}

func NewService(repo *Repository, msgsRepo *messages.Repository, hub *events.Hub, aside *cache.AsidePattern) *Service {
	return &Service{
		repo:     repo,
		msgsRepo: msgsRepo,
		hub:      hub,
		cache:    aside,
	}
}

func participantCacheKey(conversationID, userID uuid.UUID) string {
	return fmt.Sprintf("p:%s:%s", conversationID.String(), userID.String())
}

// IsParticipant is the hot-path authorization check for the message log;
// it goes through the cache-aside with a short TTL.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	loader := func() (interface{}, error) {
		return s.repo.IsParticipant(ctx, conversationID, userID)
	}

	if s.cache != nil {
		v, err := s.cache.GetOrLoad(ctx, participantCacheKey(conversationID, userID), membershipCacheTTL, loader)
		if err == nil {
			if b, ok := v.(bool); ok {
				return b, nil
			}
		}
	}

	return s.repo.IsParticipant(ctx, conversationID, userID)
}

// InvalidateParticipant drops the cached membership entry so access
// revocation takes effect immediately instead of after the TTL.
func (s *Service) InvalidateParticipant(ctx context.Context, conversationID, userID uuid.UUID) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, participantCacheKey(conversationID, userID))
	}
}

func (s *Service) CreateTeam(ctx context.Context, name string) (*Team, *Conversation, error) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return nil, nil, errors.Unauthorized("user not authenticated")
	}
	ownerID, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil, errors.Invalid("invalid user id")
	}
	if name == "" {
		return nil, nil, errors.Invalid("team name is required")
	}

	team := &Team{Name: name, OwnerID: ownerID}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return nil, nil, err
	}
	if err := s.repo.AddTeamMember(ctx, team.ID, ownerID); err != nil {
		return nil, nil, err
	}

	// Every team starts with a general channel, owner inside.
	general := &Conversation{
		TeamID:    &team.ID,
		Title:     "general",
		CreatedBy: ownerID,
	}
	if err := s.repo.CreateChannel(ctx, general, []uuid.UUID{ownerID}); err != nil {
		return nil, nil, err
	}

	welcome := &messages.Message{
		ConversationID: general.ID,
		AuthorID:       ownerID,
		Kind:           messages.KindSystem,
		Content:        fmt.Sprintf("Team %q created", name),
	}
	if err := s.msgsRepo.Create(ctx, welcome); err != nil {
		return nil, nil, err
	}

	if s.hub != nil {
		s.hub.Subscribe(userID, general.ID.String())
	}
	return team, general, nil
}

func (s *Service) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	id, err := uuid.Parse(teamID)
	if err != nil {
		return nil, errors.Invalid("invalid team id")
	}
	return s.repo.GetTeam(ctx, id)
}

func (s *Service) ListTeams(ctx context.Context) ([]*Team, error) {
	userID := auth.UserID(ctx)
	if userID == "" {
		return nil, errors.Unauthorized("user not authenticated")
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}
	return s.repo.ListTeamsForUser(ctx, id)
}

// DeleteTeam is owner-only and cascades to every child channel; their
// message logs become unreachable (NotFound) in the same transaction.
func (s *Service) DeleteTeam(ctx context.Context, teamID string) error {
	userID := auth.UserID(ctx)
	if userID == "" {
		return errors.Unauthorized("user not authenticated")
	}

	id, err := uuid.Parse(teamID)
	if err != nil {
		return errors.Invalid("invalid team id")
	}
	callerID, err := uuid.Parse(userID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}

	team, err := s.repo.GetTeam(ctx, id)
	if err != nil {
		return err
	}
	if team.OwnerID != callerID {
		return errors.Forbidden("only the team owner can delete the team")
	}

	channels, err := s.repo.ListChannels(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDeleteTeam(ctx, id); err != nil {
		return err
	}

	if s.hub != nil {
		for _, ch := range channels {
			participants, err := s.repo.ListParticipants(ctx, ch.ID)
			if err != nil {
				continue
			}
			for _, p := range participants {
				s.hub.Unsubscribe(p.UserID.String(), ch.ID.String())
				s.InvalidateParticipant(ctx, ch.ID, p.UserID)
			}
		}
	}
	return nil
}

func (s *Service) AddMember(ctx context.Context, teamID, newUserID string) error {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return errors.Unauthorized("user not authenticated")
	}

	teamUUID, err := uuid.Parse(teamID)
	if err != nil {
		return errors.Invalid("invalid team id")
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}
	newUUID, err := uuid.Parse(newUserID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}

	isMember, err := s.repo.IsTeamMember(ctx, teamUUID, callerUUID)
	if err != nil {
		return errors.Internal("membership check failed", err)
	}
	if !isMember {
		return errors.Forbidden("only team members can invite")
	}

	if _, err := s.repo.GetTeam(ctx, teamUUID); err != nil {
		return err
	}

	return s.repo.AddTeamMember(ctx, teamUUID, newUUID)
}

// RemoveMember handles both leave (self) and kick (owner only). Removal
// cascades out of every child channel's participant set.
func (s *Service) RemoveMember(ctx context.Context, teamID, targetUserID string) error {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return errors.Unauthorized("user not authenticated")
	}

	teamUUID, err := uuid.Parse(teamID)
	if err != nil {
		return errors.Invalid("invalid team id")
	}
	targetUUID, err := uuid.Parse(targetUserID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}

	team, err := s.repo.GetTeam(ctx, teamUUID)
	if err != nil {
		return err
	}

	if callerID != targetUserID && team.OwnerID.String() != callerID {
		return errors.Forbidden("only the team owner can remove members")
	}
	if targetUUID == team.OwnerID {
		return errors.Invalid("the owner cannot leave their own team")
	}

	channels, err := s.repo.ListChannels(ctx, teamUUID)
	if err != nil {
		return err
	}

	if err := s.repo.RemoveTeamMember(ctx, teamUUID, targetUUID); err != nil {
		return err
	}

	if s.hub != nil {
		for _, ch := range channels {
			s.hub.Unsubscribe(targetUserID, ch.ID.String())
			s.InvalidateParticipant(ctx, ch.ID, targetUUID)
			s.hub.BroadcastToConversation(ch.ID.String(), events.New(events.TypeMemberLeft, events.MemberChange{
				ConversationID: ch.ID.String(),
				UserID:         targetUserID,
			}))
		}
	}
	return nil
}

func (s *Service) ListMembers(ctx context.Context, teamID string) ([]*TeamMember, error) {
	id, err := uuid.Parse(teamID)
	if err != nil {
		return nil, errors.Invalid("invalid team id")
	}
	if _, err := s.repo.GetTeam(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListTeamMembers(ctx, id)
}

// CreateChannel creates a channel whose participants are a subset of team
// members; the creator is always included.
func (s *Service) CreateChannel(ctx context.Context, teamID, title string, participantIDs []string) (*Conversation, error) {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return nil, errors.Unauthorized("user not authenticated")
	}

	teamUUID, err := uuid.Parse(teamID)
	if err != nil {
		return nil, errors.Invalid("invalid team id")
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}
	if title == "" {
		return nil, errors.Invalid("channel title is required")
	}

	isMember, err := s.repo.IsTeamMember(ctx, teamUUID, callerUUID)
	if err != nil {
		return nil, errors.Internal("membership check failed", err)
	}
	if !isMember {
		return nil, errors.Forbidden("only team members can create channels")
	}

	participants := []uuid.UUID{callerUUID}
	for _, pid := range participantIDs {
		pUUID, err := uuid.Parse(pid)
		if err != nil {
			return nil, errors.Invalid("invalid participant id")
		}
		if pUUID == callerUUID {
			continue
		}
		ok, err := s.repo.IsTeamMember(ctx, teamUUID, pUUID)
		if err != nil {
			return nil, errors.Internal("membership check failed", err)
		}
		if !ok {
			return nil, errors.Invalid("channel participants must be team members")
		}
		participants = append(participants, pUUID)
	}

	conv := &Conversation{
		TeamID:    &teamUUID,
		Title:     title,
		CreatedBy: callerUUID,
	}
	if err := s.repo.CreateChannel(ctx, conv, participants); err != nil {
		return nil, err
	}

	if s.hub != nil {
		for _, p := range participants {
			s.hub.Subscribe(p.String(), conv.ID.String())
		}
	}
	return conv, nil
}

func (s *Service) ListChannels(ctx context.Context, teamID string) ([]*Conversation, error) {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return nil, errors.Unauthorized("user not authenticated")
	}

	teamUUID, err := uuid.Parse(teamID)
	if err != nil {
		return nil, errors.Invalid("invalid team id")
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return nil, errors.Invalid("invalid user id")
	}

	isMember, err := s.repo.IsTeamMember(ctx, teamUUID, callerUUID)
	if err != nil {
		return nil, errors.Internal("membership check failed", err)
	}
	if !isMember {
		return nil, errors.Forbidden("not a team member")
	}

	return s.repo.ListChannels(ctx, teamUUID)
}

func (s *Service) AddParticipant(ctx context.Context, conversationID, newUserID string) error {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return errors.Unauthorized("user not authenticated")
	}

	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return errors.Invalid("invalid conversation id")
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}
	newUUID, err := uuid.Parse(newUserID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}

	conv, err := s.repo.GetConversation(ctx, convUUID)
	if err != nil {
		return err
	}
	if conv.Kind != KindChannel {
		return errors.Invalid("participants can only be added to channels")
	}

	isParticipant, err := s.repo.IsParticipant(ctx, convUUID, callerUUID)
	if err != nil {
		return errors.Internal("membership check failed", err)
	}
	if !isParticipant {
		return errors.Forbidden("only participants can add others")
	}

	isMember, err := s.repo.IsTeamMember(ctx, *conv.TeamID, newUUID)
	if err != nil {
		return errors.Internal("membership check failed", err)
	}
	if !isMember {
		return errors.Invalid("channel participants must be team members")
	}

	if err := s.repo.AddParticipant(ctx, convUUID, newUUID); err != nil {
		return err
	}
	s.InvalidateParticipant(ctx, convUUID, newUUID)

	joined := &messages.Message{
		ConversationID: convUUID,
		AuthorID:       newUUID,
		Kind:           messages.KindSystem,
		Content:        "joined the channel",
	}
	_ = s.msgsRepo.Create(ctx, joined)

	if s.hub != nil {
		s.hub.Subscribe(newUserID, conversationID)
		s.hub.BroadcastToConversation(conversationID, events.New(events.TypeMemberJoined, events.MemberChange{
			ConversationID: conversationID,
			UserID:         newUserID,
		}))
	}
	return nil
}

func (s *Service) RemoveParticipant(ctx context.Context, conversationID, targetUserID string) error {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return errors.Unauthorized("user not authenticated")
	}

	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return errors.Invalid("invalid conversation id")
	}
	targetUUID, err := uuid.Parse(targetUserID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}

	conv, err := s.repo.GetConversation(ctx, convUUID)
	if err != nil {
		return err
	}

	if callerID != targetUserID {
		if conv.TeamID == nil {
			return errors.Forbidden("cannot remove the other side of a direct conversation")
		}
		team, err := s.repo.GetTeam(ctx, *conv.TeamID)
		if err != nil {
			return err
		}
		if team.OwnerID.String() != callerID {
			return errors.Forbidden("only the team owner can remove participants")
		}
	}

	if err := s.repo.RemoveParticipant(ctx, convUUID, targetUUID); err != nil {
		return err
	}
	s.InvalidateParticipant(ctx, convUUID, targetUUID)

	if s.hub != nil {
		s.hub.Unsubscribe(targetUserID, conversationID)
		s.hub.BroadcastToConversation(conversationID, events.New(events.TypeMemberLeft, events.MemberChange{
			ConversationID: conversationID,
			UserID:         targetUserID,
		}))
	}
	return nil
}

func (s *Service) SetMuted(ctx context.Context, conversationID string, muted bool) error {
	callerID := auth.UserID(ctx)
	if callerID == "" {
		return errors.Unauthorized("user not authenticated")
	}

	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return errors.Invalid("invalid conversation id")
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		return errors.Invalid("invalid user id")
	}

	return s.repo.SetMuted(ctx, convUUID, callerUUID, muted)
}
