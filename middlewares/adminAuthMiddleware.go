package middlewares

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/utils"
)

const (
	AdminSecretHeader = "X-Admin-Secret"
	AdminActorHeader  = "X-Admin-Actor"
)

// AdminAuthMiddleware guards the admin transition endpoints with the admin
// shared secret. The optional actor header becomes the default approver
// identity recorded on transitions.
func AdminAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.Request.Header.Get(AdminSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		actor := strings.TrimSpace(c.Request.Header.Get(AdminActorHeader))
		if actor == "" {
			actor = "admin"
		}
		ctx := utils.SetAdminActorInContext(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
