package presence

import (
	"github.com/collab-messenger/relay/internal/auth"
	"github.com/collab-messenger/relay/internal/common/errors"
	"github.com/collab-messenger/relay/internal/common/httputil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.PUT("/presence", h.SetPresence)
	r.POST("/presence/heartbeat", h.Heartbeat)
	r.GET("/presence/:user_id", h.GetStatus)
}

type setPresenceRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SetPresence(c *gin.Context) {
	callerID := auth.UserID(c.Request.Context())
	if callerID == "" {
		httputil.Error(c, errors.Unauthorized("user not authenticated"))
		return
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		httputil.BadRequest(c, "invalid user id")
		return
	}

	var req setPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	if err := h.manager.SetPresence(c.Request.Context(), callerUUID, req.Status); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"status": req.Status})
}

func (h *Handler) Heartbeat(c *gin.Context) {
	callerID := auth.UserID(c.Request.Context())
	if callerID == "" {
		httputil.Error(c, errors.Unauthorized("user not authenticated"))
		return
	}
	callerUUID, err := uuid.Parse(callerID)
	if err != nil {
		httputil.BadRequest(c, "invalid user id")
		return
	}
	if err := h.manager.Heartbeat(c.Request.Context(), callerUUID); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"status": h.manager.GetStatus(callerUUID)})
}

func (h *Handler) GetStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		httputil.BadRequest(c, "invalid user id")
		return
	}
	httputil.OK(c, gin.H{
		"user_id": userID.String(),
		"status":  h.manager.GetStatus(userID),
	})
}
