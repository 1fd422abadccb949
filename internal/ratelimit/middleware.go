package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/collab-messenger/relay/internal/auth"
	"github.com/gin-gonic/gin"
)

// Middleware limits per user when authenticated, per client IP otherwise.
// The scope prefix picks the limit class (e.g. "message", "search").
func Middleware(limiter *Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := auth.UserID(c.Request.Context())
		if principal == "" {
			principal = c.ClientIP()
		}

		key := fmt.Sprintf("%s:%s", scope, principal)
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil || !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
