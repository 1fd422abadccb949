package identity

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
	users := r.Group("/users")
	users.POST("", h.Register)
	users.GET("/:id", h.Get)
	users.GET("", h.Search)
	users.GET("/by-handle/:handle", h.ResolveHandle)
	users.PATCH("/me", h.UpdateProfile)
	users.PUT("/me/handle", h.RenameHandle)
}

type registerRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Handle string `json:"handle" binding:"required"`
	Email  string `json:"email"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	user, err := h.service.Register(c.Request.Context(), req.UserID, req.Handle, req.Email)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.Created(c, user)
}

func (h *Handler) Get(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, user)
}

func (h *Handler) ResolveHandle(c *gin.Context) {
	user, err := h.service.ResolveHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, user)
}

func (h *Handler) Search(c *gin.Context) {
	prefix := c.Query("handle_prefix")
	limit, _ := strconv.Atoi(c.Query("limit"))
	users, err := h.service.Search(c.Request.Context(), prefix, limit)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"users": users})
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	AvatarURL   string `json:"avatar_url"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	user, err := h.service.UpdateProfile(c.Request.Context(), req.DisplayName, req.Email, req.Phone, req.AvatarURL)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, user)
}

type renameHandleRequest struct {
	Handle string `json:"handle" binding:"required"`
}

func (h *Handler) RenameHandle(c *gin.Context) {
	var req renameHandleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	user, err := h.service.RenameHandle(c.Request.Context(), req.Handle)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, user)
}
