package dm

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
	dms := r.Group("/dms")
	dms.POST("", h.Open)
	dms.GET("", h.List)
	dms.GET("/:id", h.Get)
	dms.DELETE("/:id", h.Close)
}

type openRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) Open(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	conv, created, err := h.service.Open(c.Request.Context(), req.UserID)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	if created {
		httputil.Created(c, conv)
		return
	}
	httputil.OK(c, conv)
}

func (h *Handler) List(c *gin.Context) {
	convs, err := h.service.List(c.Request.Context())
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"conversations": convs})
}

func (h *Handler) Close(c *gin.Context) {
	if err := h.service.Close(c.Request.Context(), c.Param("id")); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) Get(c *gin.Context) {
	conv, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, conv)
}
