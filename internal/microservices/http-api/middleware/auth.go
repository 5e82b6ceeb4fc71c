package middleware

import (
	"net/http"
	"strings"

	"mooshihub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
)

// context keys set by the middlewares below
const (
	ContextOwner = "owner"
	ContextRole  = "role"
)

// AdminMiddleware guards the key management routes. A request is let through
// when it carries the master key in the "master" query parameter or an admin
// token issued by /v1/admin/token as "Authorization: Bearer <token>".
func AdminMiddleware(keys service.KeyService, tokens service.AdminTokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if master := c.Query("master"); master != "" {
			if !keys.VerifyMaster(master) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid master API key"})
				c.Abort()
				return
			}
			c.Set(ContextRole, service.RoleAdmin)
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing master key or admin token"})
			c.Abort()
			return
		}

		claims, err := tokens.Validate(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// APIKeyMiddleware requires a known API key in the Authorization header, raw
// or as a bearer token, and stores the key's owner for the handlers.
func APIKeyMiddleware(keys service.KeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := c.GetHeader("Authorization")
		if credential == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		owner, err := keys.Owner(c.Request.Context(), credential)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set(ContextOwner, owner)
		c.Next()
	}
}

// bearerToken extracts the token from "Bearer <token>".
func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ") // 0 is Bearer, 1 is token
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
