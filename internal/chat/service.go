package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/collab-messenger/relay/internal/membership"
	"github.com/collab-messenger/relay/internal/messages"
	"github.com/collab-messenger/relay/internal/notifications"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxContentLength = 4000
	previewLength    = 120
)

// truncatePreview cuts on rune boundaries so a multi-byte character is
// never split into invalid UTF-8.
func truncatePreview(content string, limit int) string {
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	return string([]rune(content)[:limit])
}

// AppendObserver counts appended messages for monitoring.
type AppendObserver interface {
	RecordMessageAppended()
}

type Service struct {
	repo       *messages.Repository
	members    *membership.Service
	memberRepo *membership.Repository
	hub        *events.Hub
	dispatcher *notifications.Dispatcher
	observer   AppendObserver
	logger     *zap.Logger
}

func NewService(
	repo *messages.Repository,
	members *membership.Service,
	memberRepo *membership.Repository,
	hub *events.Hub,
	dispatcher *notifications.Dispatcher,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:       repo,
		members:    members,
		memberRepo: memberRepo,
		hub:        hub,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (s *Service) WithObserver(o AppendObserver) *Service {
	s.observer = o
	return s
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

// requireParticipant keeps the cached membership check on the hot path.
// Only when it fails does it resolve the conversation, so a missing or
// tombstoned conversation reads as NotFound rather than Forbidden.
func (s *Service) requireParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	ok, err := s.members.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return errors.Internal("membership check failed", err)
	}
	if ok {
		return nil
	}
	if _, err := s.memberRepo.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	return errors.Forbidden("not a participant of this conversation")
}

func validateContent(kind, content string) error {
	switch kind {
	case messages.KindText:
		if strings.TrimSpace(content) == "" {
			return errors.Invalid("message body cannot be empty")
		}
		if utf8.RuneCountInString(content) > maxContentLength {
			return errors.Invalid("message body is too long")
		}
	case messages.KindGif, messages.KindFile:
		if content == "" {
			return errors.Invalid("attachment uri is required")
		}
	default:
		return errors.Invalid("unknown message kind")
	}
	return nil
}

// Append writes a message to the conversation log and fans it out. The
// hub broadcast and notification enqueue never block the write path.
func (s *Service) Append(ctx context.Context, conversationID, kind, content string) (*messages.Message, error) {
	authorID, authorStr, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, errors.Invalid("invalid conversation id")
	}
	if kind == "" {
		kind = messages.KindText
	}
	if err := validateContent(kind, content); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, convUUID, authorID); err != nil {
		return nil, err
	}

	msg := &messages.Message{
		ConversationID: convUUID,
		AuthorID:       authorID,
		Kind:           kind,
		Content:        content,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer.RecordMessageAppended()
	}
	if s.hub != nil {
		s.hub.BroadcastToConversation(conversationID, events.New(events.TypeMessageAppended, payloadFrom(msg)))
	}
	s.notifyAsync(msg, authorStr)
	return msg, nil
}

// notifyAsync enqueues a notification per recipient, skipping the author,
// muted participants, and anyone with a live subscription to the
// conversation (they already got the delta).
func (s *Service) notifyAsync(msg *messages.Message, authorID string) {
	if s.dispatcher == nil {
		return
	}
	go func() {
		ctx := context.Background()
		participants, err := s.memberRepo.ListParticipants(ctx, msg.ConversationID)
		if err != nil {
			s.logger.Error("notification fan-out failed",
				zap.String("conversation_id", msg.ConversationID.String()),
				zap.Error(err))
			return
		}
		preview := truncatePreview(msg.Content, previewLength)
		for _, p := range participants {
			recipient := p.UserID.String()
			if recipient == authorID || p.Muted {
				continue
			}
			if s.hub != nil && s.hub.IsConnected(recipient) {
				continue
			}
			s.dispatcher.Enqueue(notifications.Notification{
				UserID:         recipient,
				ConversationID: msg.ConversationID.String(),
				MessageID:      msg.ID,
				SenderID:       authorID,
				Kind:           notifications.KindMessage,
				Preview:        preview,
			})
		}
	}()
}

func (s *Service) Edit(ctx context.Context, messageID int64, content string) (*messages.Message, error) {
	authorID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID != authorID {
		return nil, errors.Forbidden("only the author can edit a message")
	}
	if msg.Kind != messages.KindText {
		return nil, errors.Invalid("only text messages can be edited")
	}
	if err := validateContent(messages.KindText, content); err != nil {
		return nil, err
	}

	msg.Content = content
	if err := s.repo.Update(ctx, msg); err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastToConversation(msg.ConversationID.String(), events.New(events.TypeMessageEdited, payloadFrom(msg)))
	}
	return msg, nil
}

func (s *Service) Delete(ctx context.Context, messageID int64) error {
	authorID, _, err := s.caller(ctx)
	if err != nil {
		return err
	}

	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID != authorID {
		return errors.Forbidden("only the author can delete a message")
	}

	if err := s.repo.SoftDelete(ctx, messageID); err != nil {
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastToConversation(msg.ConversationID.String(), events.New(events.TypeMessageDeleted, events.MessageDeleted{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID.String(),
		}))
	}
	return nil
}

// React toggles the caller's reaction. Same emoji removes it, a different
// emoji replaces the previous one.
func (s *Service) React(ctx context.Context, messageID int64, emoji string) (messages.ReactionState, error) {
	callerID, callerStr, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if emoji == "" {
		return nil, errors.Invalid("emoji is required")
	}

	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, callerID); err != nil {
		return nil, err
	}

	emojiAfter, removed, err := s.repo.ToggleReaction(ctx, messageID, callerID, emoji)
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.BroadcastToConversation(msg.ConversationID.String(), events.New(events.TypeReactionChanged, events.ReactionChanged{
			MessageID:      messageID,
			ConversationID: msg.ConversationID.String(),
			UserID:         callerStr,
			Emoji:          emojiAfter,
			Removed:        removed,
		}))
	}

	return s.repo.GetReactions(ctx, messageID)
}

func (s *Service) ListSince(ctx context.Context, conversationID string, afterID int64, limit int) ([]*messages.Message, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, errors.Invalid("invalid conversation id")
	}
	if err := s.requireParticipant(ctx, convUUID, callerID); err != nil {
		return nil, err
	}
	return s.repo.ListSince(ctx, convUUID, afterID, limit)
}

func (s *Service) ListBefore(ctx context.Context, conversationID string, beforeID int64, limit int) ([]*messages.Message, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	convUUID, err := uuid.Parse(conversationID)
	if err != nil {
		return nil, errors.Invalid("invalid conversation id")
	}
	if err := s.requireParticipant(ctx, convUUID, callerID); err != nil {
		return nil, err
	}
	return s.repo.ListBefore(ctx, convUUID, beforeID, limit)
}

func (s *Service) Reactions(ctx context.Context, messageID int64) (messages.ReactionState, error) {
	callerID, _, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, msg.ConversationID, callerID); err != nil {
		return nil, err
	}
	return s.repo.GetReactions(ctx, messageID)
}

func payloadFrom(msg *messages.Message) events.MessagePayload {
	return events.MessagePayload{
		ID:             msg.ID,
		ConversationID: msg.ConversationID.String(),
		AuthorID:       msg.AuthorID.String(),
		Kind:           msg.Kind,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
		Edited:         msg.EditedAt != nil,
	}
}
