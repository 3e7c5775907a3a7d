// Package auth guards the administrative and ingestion boundaries with
// static bearer tokens. Full user authentication lives upstream; the
// pipeline only distinguishes callers by role.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Roles set on the request context by RequireToken.
const (
	RoleAdmin   = "admin"
	RoleScraper = "scraper"
)

// RequireToken is a middleware that checks the Authorization bearer token
// against the configured secret for a role.
func RequireToken(token, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		provided, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}

		c.Set("role", role)
		c.Next()
	}
}
