package storage

import (
	"time"

	"github.com/collab-messenger/relay/internal/common/httputil"
	"github.com/gin-gonic/gin"
)

const presignTTL = 15 * time.Minute

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/uploads/presign", h.Presign)
}

type presignRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

// Presign hands the client a direct upload URL plus the URI to put in
// the file message once the upload finishes.
func (h *Handler) Presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	uploadURL, objectURL, err := h.client.PresignPut(c.Request.Context(), req.Filename, req.ContentType, presignTTL)
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{
		"upload_url": uploadURL,
		"object_url": objectURL,
	})
}
