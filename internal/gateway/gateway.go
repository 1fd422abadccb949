package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/events"
	"github.com/collab-messenger/relay/internal/membership"
	"github.com/collab-messenger/relay/internal/messages"
	"github.com/collab-messenger/relay/internal/presence"
	"github.com/collab-messenger/relay/internal/typing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	snapshotLimit  = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Command is what a client sends over the socket.
type Command struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
	ResumeFrom     int64  `json:"resume_from,string,omitempty"`
	Status         string `json:"status,omitempty"`
}

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionTyping      = "typing"
	actionHeartbeat   = "heartbeat"
	actionPresence    = "presence"
)

// ConnMetrics observes socket lifecycle without the handler knowing the
// metrics backend.
type ConnMetrics interface {
	SocketConnected()
	SocketDisconnected()
}

type Handler struct {
	verifier   *auth.Verifier
	hub        *events.Hub
	members    *membership.Service
	memberRepo *membership.Repository
	msgs       *messages.Repository
	presence   *presence.Manager
	typing     *typing.Service
	metrics    ConnMetrics
	logger     *zap.Logger
}

func NewHandler(
	verifier *auth.Verifier,
	hub *events.Hub,
	members *membership.Service,
	memberRepo *membership.Repository,
	msgs *messages.Repository,
	presenceMgr *presence.Manager,
	typingSvc *typing.Service,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		verifier:   verifier,
		hub:        hub,
		members:    members,
		memberRepo: memberRepo,
		msgs:       msgs,
		presence:   presenceMgr,
		typing:     typingSvc,
		logger:     logger,
	}
}

func (h *Handler) WithMetrics(m ConnMetrics) *Handler {
	h.metrics = m
	return h
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws", h.Serve)
}

// Serve upgrades the connection and runs the session until the client
// goes away or is displaced by a newer connection for the same user.
func (h *Handler) Serve(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	userUUID, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.String("user_id", claims.UserID),
			zap.Error(err))
		return
	}

	ctx := c.Request.Context()
	client := h.hub.AddClient(ctx, claims.UserID)
	if client == nil {
		// The hub is shutting down.
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}

	// Every conversation the user belongs to delivers deltas from the
	// moment the socket is up.
	if convIDs, err := h.memberRepo.ListConversationIDsForUser(ctx, userUUID); err == nil {
		for _, convID := range convIDs {
			h.hub.Subscribe(claims.UserID, convID.String())
		}
	}

	_ = h.presence.Heartbeat(ctx, userUUID)

	if h.metrics != nil {
		h.metrics.SocketConnected()
		defer h.metrics.SocketDisconnected()
	}

	go h.writeLoop(conn, client)
	h.readLoop(conn, client, userUUID)
}

func (h *Handler) readLoop(conn *websocket.Conn, client *events.Client, userUUID uuid.UUID) {
	defer func() {
		// Detaches only this connection; a newer one for the same user
		// stays registered, in which case the user is still online.
		h.hub.RemoveClient(client)
		conn.Close()
		if !h.hub.IsConnected(client.UserID) {
			_ = h.presence.SetOffline(context.Background(), userUUID)
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed unexpectedly",
					zap.String("user_id", client.UserID),
					zap.Error(err))
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		h.handleCommand(client, userUUID, cmd)
	}
}

func (h *Handler) handleCommand(client *events.Client, userUUID uuid.UUID, cmd Command) {
	ctx := auth.WithUserID(client.Context(), client.UserID)

	switch cmd.Action {
	case actionSubscribe:
		convUUID, err := uuid.Parse(cmd.ConversationID)
		if err != nil {
			return
		}
		ok, err := h.members.IsParticipant(ctx, convUUID, userUUID)
		if err != nil || !ok {
			return
		}
		h.hub.Subscribe(client.UserID, cmd.ConversationID)
		h.sendSnapshot(ctx, client, convUUID, cmd.ResumeFrom)

	case actionUnsubscribe:
		h.hub.Unsubscribe(client.UserID, cmd.ConversationID)

	case actionTyping:
		convUUID, err := uuid.Parse(cmd.ConversationID)
		if err != nil {
			return
		}
		_ = h.typing.NotifyTyping(ctx, userUUID, convUUID)

	case actionHeartbeat:
		_ = h.presence.Heartbeat(ctx, userUUID)

	case actionPresence:
		_ = h.presence.SetPresence(ctx, userUUID, cmd.Status)
	}
}

// sendSnapshot replays the log from the client's cursor so a reconnect
// picks up exactly where it left off.
func (h *Handler) sendSnapshot(ctx context.Context, client *events.Client, convUUID uuid.UUID, resumeFrom int64) {
	msgs, err := h.msgs.ListSince(ctx, convUUID, resumeFrom, snapshotLimit)
	if err != nil {
		h.logger.Error("snapshot failed",
			zap.String("conversation_id", convUUID.String()),
			zap.Error(err))
		return
	}

	payloads := make([]events.MessagePayload, 0, len(msgs))
	last := resumeFrom
	for _, m := range msgs {
		payloads = append(payloads, events.MessagePayload{
			ID:             m.ID,
			ConversationID: m.ConversationID.String(),
			AuthorID:       m.AuthorID.String(),
			Kind:           m.Kind,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
			Edited:         m.EditedAt != nil,
		})
		if m.ID > last {
			last = m.ID
		}
	}

	h.hub.BroadcastToUser(client.UserID, events.New(events.TypeSnapshot, events.Snapshot{
		ConversationID: convUUID.String(),
		Messages:       payloads,
		ResumeFrom:     last,
	}))
}

func (h *Handler) writeLoop(conn *websocket.Conn, client *events.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-client.Context().Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case event := <-client.SendChan:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}
