package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Hub routes deltas to connected clients. Subscriptions are held in two
// maps guarded by one RWMutex: the per-conversation subscriber sets and the
// per-client reverse index. Sends are non-blocking; a full client channel
// drops the event rather than stalling writers. Because the subscriber set
// is consulted under the lock at send time, an Unsubscribe that returns has
// already stopped all future deliveries.
type Hub struct {
	mu            sync.RWMutex
	clients       map[string]*Client
	conversations map[string]map[string]bool
	logger        *zap.Logger
	shutdown      bool

	dropped func(userID string)
}

type Client struct {
	UserID        string
	SendChan      chan *Event
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

func (c *Client) Context() context.Context {
	return c.ctx
}

const sendBuffer = 256

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		conversations: make(map[string]map[string]bool),
		logger:        logger,
	}
}

// OnDrop registers a callback invoked when a client's buffer overflows.
// Used for metrics only; must not block.
func (h *Hub) OnDrop(fn func(userID string)) {
	h.dropped = fn
}

func (h *Hub) Logger() *zap.Logger {
	return h.logger
}

// AddClient registers a connection for userID. An existing connection for
// the same user is displaced first so its listener cannot leak.
func (h *Hub) AddClient(parent context.Context, userID string) *Client {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		h.logger.Warn("rejecting new client during shutdown", zap.String("user_id", userID))
		return nil
	}

	if prev, ok := h.clients[userID]; ok {
		h.detachLocked(prev)
	}

	ctx, cancel := context.WithCancel(parent)
	client := &Client{
		UserID:        userID,
		SendChan:      make(chan *Event, sendBuffer),
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
	h.clients[userID] = client
	h.mu.Unlock()

	h.logger.Info("client connected", zap.String("user_id", userID))
	return client
}

// RemoveClient detaches exactly this connection. A client that was
// already displaced by a newer connection for the same user is a no-op,
// so a stale socket tearing down cannot take the live one with it.
func (h *Hub) RemoveClient(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[client.UserID]
	if !ok || current != client {
		return
	}
	h.detachLocked(client)
	h.logger.Info("client disconnected", zap.String("user_id", client.UserID))
}

func (h *Hub) detachLocked(client *Client) {
	for convID := range client.subscriptions {
		if subs, exists := h.conversations[convID]; exists {
			delete(subs, client.UserID)
			if len(subs) == 0 {
				delete(h.conversations, convID)
			}
		}
	}

	// The send channel is never closed; writers race detachment, and a
	// cancelled context is what stops the reader side.
	client.cancel()
	delete(h.clients, client.UserID)
}

func (h *Hub) Subscribe(userID, conversationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[userID]
	if !ok {
		return false
	}

	select {
	case <-client.ctx.Done():
		return false
	default:
	}

	client.subscriptions[conversationID] = true
	if _, exists := h.conversations[conversationID]; !exists {
		h.conversations[conversationID] = make(map[string]bool)
	}
	h.conversations[conversationID][userID] = true

	h.logger.Debug("client subscribed",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID),
	)
	return true
}

func (h *Hub) Unsubscribe(userID, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[userID]
	if !ok {
		return
	}

	delete(client.subscriptions, conversationID)
	if subs, exists := h.conversations[conversationID]; exists {
		delete(subs, userID)
		if len(subs) == 0 {
			delete(h.conversations, conversationID)
		}
	}

	h.logger.Debug("client unsubscribed",
		zap.String("user_id", userID),
		zap.String("conversation_id", conversationID),
	)
}

// BroadcastToConversation delivers under the read lock. Unsubscribe takes
// the write lock, so once it returns no in-flight broadcast can still
// reach the departed client. Sends never block, holding the lock through
// them is cheap.
func (h *Hub) BroadcastToConversation(conversationID string, event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID := range h.conversations[conversationID] {
		if client, ok := h.clients[userID]; ok {
			h.send(client, event)
		}
	}
}

func (h *Hub) BroadcastToUser(userID string, event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, ok := h.clients[userID]; ok {
		h.send(client, event)
	}
}

func (h *Hub) send(client *Client, event *Event) {
	select {
	case <-client.ctx.Done():
	case client.SendChan <- event:
	default:
		h.logger.Warn("client channel full, dropping event",
			zap.String("user_id", client.UserID),
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
		)
		if h.dropped != nil {
			h.dropped(client.UserID)
		}
	}
}

func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) ConversationHasSubscribers(conversationID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs, ok := h.conversations[conversationID]
	return ok && len(subs) > 0
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.shutdown = true

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	h.logger.Info("shutting down event hub", zap.Int("clients", len(clients)))

	for _, client := range clients {
		h.RemoveClient(client)
	}
	return nil
}
