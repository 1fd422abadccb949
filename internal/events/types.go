package events

import (
	"time"

	"github.com/google/uuid"
)

// Delta types delivered over a subscription, in the order the hub saw them.
const (
	TypeSnapshot             = "snapshot"
	TypeMessageAppended      = "appended"
	TypeMessageEdited        = "edited"
	TypeMessageDeleted       = "deleted"
	TypeReactionChanged      = "reaction-changed"
	TypePresenceChanged      = "presence-changed"
	TypeMessageRead          = "read"
	TypeUnreadUpdated        = "unread-updated"
	TypeFriendRequestCreated = "friend-request-created"
	TypeFriendRequestUpdated = "friend-request-updated"
	TypeMemberJoined         = "member-joined"
	TypeMemberLeft           = "member-left"
	TypeTyping               = "typing"
	TypeProfileUpdated       = "profile-updated"
)

type Event struct {
	ID        string      `json:"event_id"`
	Type      string      `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	Payload   interface{} `json:"payload,omitempty"`
}

func New(eventType string, payload interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

type MessagePayload struct {
	ID             int64     `json:"id,string"`
	ConversationID string    `json:"conversation_id"`
	AuthorID       string    `json:"author_id"`
	Kind           string    `json:"kind"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
	Edited         bool      `json:"edited"`
}

type MessageDeleted struct {
	MessageID      int64  `json:"message_id,string"`
	ConversationID string `json:"conversation_id"`
}

type ReactionChanged struct {
	MessageID      int64  `json:"message_id,string"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Emoji          string `json:"emoji,omitempty"`
	Removed        bool   `json:"removed"`
}

type PresenceChanged struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

type MessageRead struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	LastReadID     int64  `json:"last_read_id,string"`
}

type UnreadUpdated struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int    `json:"unread_count"`
	LastSender     string `json:"last_sender,omitempty"`
	LastPreview    string `json:"last_preview,omitempty"`
}

type FriendRequestPayload struct {
	RequestID  string `json:"request_id"`
	FromUserID string `json:"from_user_id"`
	FromHandle string `json:"from_handle,omitempty"`
	ToUserID   string `json:"to_user_id"`
	Status     string `json:"status"`
}

type MemberChange struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type Typing struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type ProfileUpdated struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
}

type Snapshot struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []MessagePayload `json:"messages"`
	ResumeFrom     int64            `json:"resume_from,string"`
}
