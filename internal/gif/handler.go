package gif

import (
	"github.com/collab-messenger/relay/internal/common/httputil"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/gifs/search", h.Search)
}

func (h *Handler) Search(c *gin.Context) {
	candidates, err := h.client.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		httputil.Error(c, err)
		return
	}
	httputil.OK(c, gin.H{"gifs": candidates})
}
