package notifications

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
	n := r.Group("/notifications")
	n.GET("/summary", h.Summary)
	n.POST("/acknowledge/:conversation_id", h.Acknowledge)
}

func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.service.GetSummary(c.Request.Context())
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, summary)
}

func (h *Handler) Acknowledge(c *gin.Context) {
	if err := h.service.Acknowledge(c.Request.Context(), c.Param("conversation_id")); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}
