package notifications

import (
	"context"

	"github.com/collab-messenger/relay/internal/events"
	"github.com/collab-messenger/relay/internal/readtracking"
	"github.com/google/uuid"
)

// HubPublisher recomputes the recipient's unread count at delivery time
// and pushes an unread-updated delta to their connection. The recipient
// may have connected after the enqueue-time liveness check, so this is a
// second chance at realtime delivery; disconnected users fall through to
// the external publishers.
type HubPublisher struct {
	hub   *events.Hub
	reads *readtracking.Repository
}

func NewHubPublisher(hub *events.Hub, reads *readtracking.Repository) *HubPublisher {
	return &HubPublisher{hub: hub, reads: reads}
}

func (p *HubPublisher) Publish(ctx context.Context, n Notification) error {
	if n.Kind != KindMessage || !p.hub.IsConnected(n.UserID) {
		return nil
	}

	userID, err := uuid.Parse(n.UserID)
	if err != nil {
		return err
	}
	convID, err := uuid.Parse(n.ConversationID)
	if err != nil {
		return err
	}

	count, err := p.reads.UnreadCount(ctx, userID, convID)
	if err != nil {
		return err
	}

	p.hub.BroadcastToUser(n.UserID, events.New(events.TypeUnreadUpdated, events.UnreadUpdated{
		ConversationID: n.ConversationID,
		UnreadCount:    count,
		LastSender:     n.SenderID,
		LastPreview:    n.Preview,
	}))
	return nil
}
