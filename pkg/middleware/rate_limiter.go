package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiter limits requests per client IP using an in-memory store.
// rate uses ulule's format, e.g. "120-M" for 120 per minute. Paths with a
// prefix in skipPaths bypass the limiter (health, metrics).
func RateLimiter(rate string, skipPaths []string) (gin.HandlerFunc, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	l := limiter.New(memory.NewStore(), parsed)

	return func(c *gin.Context) {
		for _, p := range skipPaths {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		lctx, err := l.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Limiter trouble never blocks traffic.
			c.Next()
			return
		}
		if lctx.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}, nil
}
