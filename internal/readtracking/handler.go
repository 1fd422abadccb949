package readtracking

import (
	"strconv"

	"github.com/collab-messenger/relay/internal/common/httputil"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	convs := r.Group("/conversations")
	convs.PUT("/:id/read", h.MarkRead)
	convs.GET("/:id/read", h.Marker)
	convs.GET("/:id/unread-count", h.UnreadCount)
	convs.GET("/:id/readers", h.Readers)
}

type markReadRequest struct {
	LastReadID int64 `json:"last_read_id,string" binding:"required"`
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	marker, err := h.service.MarkRead(c.Request.Context(), c.Param("id"), req.LastReadID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, marker)
}

func (h *Handler) Marker(c *gin.Context) {
	marker, err := h.service.Marker(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, marker)
}

func (h *Handler) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"unread_count": count})
}

func (h *Handler) Readers(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Query("message_id"), 10, 64)
	if err != nil {
		httputil.BadRequest(c, "invalid message_id")
		return
	}
	readers, err := h.service.Readers(c.Request.Context(), c.Param("id"), messageID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"readers": readers})
}
