package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Identity is the authenticated caller, as vouched for by the external
// identity provider.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

const identityKey = "pulse.identity"

var authHTTPClient = &http.Client{Timeout: 10 * time.Second}

// AuthRequired verifies the bearer token against the identity provider. With
// no provider configured, requests run as a fixed dev user so local setups
// work without auth infrastructure.
func (h *Handlers) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cfg.AuthURL == "" {
			c.Set(identityKey, Identity{ID: "dev-user", Email: "dev@pulse.local"})
			c.Next()
			return
		}

		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}
		token := strings.TrimPrefix(authz, "Bearer ")

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, h.cfg.AuthURL+"/auth/v1/user", nil)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth validation error"})
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("apikey", h.cfg.AuthAnonKey)

		resp, err := authHTTPClient.Do(req)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth validation error"})
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var ident Identity
		if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil || ident.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// CurrentIdentity returns the caller set by AuthRequired.
func CurrentIdentity(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if ident, ok := v.(Identity); ok {
			return ident
		}
	}
	return Identity{}
}
