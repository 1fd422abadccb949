package chat

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
	convs.POST("/:id/messages", h.Append)
	convs.GET("/:id/messages", h.List)

	msgs := r.Group("/messages")
	msgs.PATCH("/:message_id", h.Edit)
	msgs.DELETE("/:message_id", h.Delete)
	msgs.PUT("/:message_id/reaction", h.React)
	msgs.GET("/:message_id/reactions", h.Reactions)
}

type appendRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) Append(c *gin.Context) {
	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	msg, err := h.service.Append(c.Request.Context(), c.Param("id"), req.Kind, req.Content)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.Created(c, msg)
}

// List pages the log: after=<id> walks forward (sync), before=<id> walks
// backward (history). With neither it returns the newest page.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	if after := c.Query("after"); after != "" {
		afterID, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			httputil.BadRequest(c, "invalid after cursor")
			return
		}
		msgs, err := h.service.ListSince(c.Request.Context(), c.Param("id"), afterID, limit)
		if err != nil {
			httputil.Error(c, err)
			return
		}
		httputil.OK(c, gin.H{"messages": msgs})
		return
	}

	var beforeID int64
	if before := c.Query("before"); before != "" {
		var err error
		beforeID, err = strconv.ParseInt(before, 10, 64)
		if err != nil {
			httputil.BadRequest(c, "invalid before cursor")
			return
		}
	}
	msgs, err := h.service.ListBefore(c.Request.Context(), c.Param("id"), beforeID, limit)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"messages": msgs})
}

type editRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) Edit(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		httputil.BadRequest(c, "invalid message id")
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	msg, err := h.service.Edit(c.Request.Context(), messageID, req.Content)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, msg)
}

func (h *Handler) Delete(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		httputil.BadRequest(c, "invalid message id")
		return
	}
	if err := h.service.Delete(c.Request.Context(), messageID); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

type reactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *Handler) React(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		httputil.BadRequest(c, "invalid message id")
		return
	}
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	state, err := h.service.React(c.Request.Context(), messageID, req.Emoji)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"reactions": state})
}

func (h *Handler) Reactions(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		httputil.BadRequest(c, "invalid message id")
		return
	}
	state, err := h.service.Reactions(c.Request.Context(), messageID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"reactions": state})
}
