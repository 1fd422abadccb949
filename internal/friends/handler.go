package friends

import (
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
	f := r.Group("/friends")
	f.GET("", h.List)
	f.DELETE("/:user_id", h.Remove)
	f.POST("/requests", h.SendRequest)
	f.GET("/requests/incoming", h.ListIncoming)
	f.GET("/requests/outgoing", h.ListOutgoing)
	f.POST("/requests/:id/accept", h.Accept)
	f.POST("/requests/:id/reject", h.Reject)
}

type sendRequestBody struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) SendRequest(c *gin.Context) {
	var req sendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	result, err := h.service.SendRequest(c.Request.Context(), req.UserID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.Created(c, result)
}

func (h *Handler) Accept(c *gin.Context) {
	result, err := h.service.Accept(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, result)
}

func (h *Handler) Reject(c *gin.Context) {
	if err := h.service.Reject(c.Request.Context(), c.Param("id")); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("user_id")); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) List(c *gin.Context) {
	friends, err := h.service.List(c.Request.Context())
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"friends": friends})
}

func (h *Handler) ListIncoming(c *gin.Context) {
	requests, err := h.service.ListIncoming(c.Request.Context())
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"requests": requests})
}

func (h *Handler) ListOutgoing(c *gin.Context) {
	requests, err := h.service.ListOutgoing(c.Request.Context())
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"requests": requests})
}
