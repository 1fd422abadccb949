package membership

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
	teams := r.Group("/teams")
	teams.POST("", h.CreateTeam)
	teams.GET("", h.ListTeams)
	teams.GET("/:id", h.GetTeam)
	teams.DELETE("/:id", h.DeleteTeam)
	teams.GET("/:id/members", h.ListMembers)
	teams.POST("/:id/members", h.AddMember)
	teams.DELETE("/:id/members/:user_id", h.RemoveMember)
	teams.GET("/:id/channels", h.ListChannels)
	teams.POST("/:id/channels", h.CreateChannel)

	convs := r.Group("/conversations")
	convs.POST("/:id/participants", h.AddParticipant)
	convs.DELETE("/:id/participants/:user_id", h.RemoveParticipant)
	convs.PUT("/:id/mute", h.Mute)
	convs.DELETE("/:id/mute", h.Unmute)
}

type createTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) CreateTeam(c *gin.Context) {
	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	team, general, err := h.service.CreateTeam(c.Request.Context(), req.Name)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.Created(c, gin.H{"team": team, "default_channel": general})
}

func (h *Handler) ListTeams(c *gin.Context) {
	teams, err := h.service.ListTeams(c.Request.Context())
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"teams": teams})
}

func (h *Handler) GetTeam(c *gin.Context) {
	team, err := h.service.GetTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, team)
}

func (h *Handler) DeleteTeam(c *gin.Context) {
	if err := h.service.DeleteTeam(c.Request.Context(), c.Param("id")); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"members": members})
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) AddMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	if err := h.service.AddMember(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	if err := h.service.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("user_id")); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.service.ListChannels(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"channels": channels})
}

type createChannelRequest struct {
	Title        string   `json:"title" binding:"required"`
	Participants []string `json:"participants"`
}

func (h *Handler) CreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	conv, err := h.service.CreateChannel(c.Request.Context(), c.Param("id"), req.Title, req.Participants)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.Created(c, conv)
}

type addParticipantRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) AddParticipant(c *gin.Context) {
	var req addParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	if err := h.service.AddParticipant(c.Request.Context(), c.Param("id"), req.UserID); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) RemoveParticipant(c *gin.Context) {
	if err := h.service.RemoveParticipant(c.Request.Context(), c.Param("id"), c.Param("user_id")); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) Mute(c *gin.Context) {
	if err := h.service.SetMuted(c.Request.Context(), c.Param("id"), true); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}

func (h *Handler) Unmute(c *gin.Context) {
	if err := h.service.SetMuted(c.Request.Context(), c.Param("id"), false); err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.NoContent(c)
}
