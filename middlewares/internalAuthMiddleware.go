package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/utils"
)

const InternalSecretHeader = "X-Internal-Secret"

// InternalAuthMiddleware guards the onchain-trigger endpoint with the shared
// secret presented by the internal trigger service.
func InternalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.Request.Header.Get(InternalSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetInternalCallerInContext(c.Request.Context(), true)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
