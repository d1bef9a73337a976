package middleware

import (
	"crypto/hmac"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServiceKeyHeader carries the shared service credential used by worker
// callbacks. This is service auth, never user auth.
const ServiceKeyHeader = "X-Service-Key"

// ServiceKeyRequired rejects requests whose service key header does not match
// the configured secret.
func ServiceKeyRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(ServiceKeyHeader)
		if secret == "" || !hmac.Equal([]byte(key), []byte(secret)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid service key"})
			return
		}
		c.Next()
	}
}
