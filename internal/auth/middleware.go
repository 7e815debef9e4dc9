package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyToken is the gin context key for the validated token.
	ContextKeyToken = "authToken"
	// ContextKeyUserID is the gin context key for the authenticated user's ID.
	ContextKeyUserID = "authUserID"
)

// Middleware extracts and validates the bearer token from the request.
// Sets the token and user ID in context when valid; never rejects by itself.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" {
			raw = c.GetHeader("X-API-Token")
		}

		if raw != "" {
			tok, err := m.ValidateToken(c.Request.Context(), raw)
			if err == nil {
				c.Set(ContextKeyToken, tok)
				c.Set(ContextKeyUserID, tok.UserID)
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests that did not present a valid token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyToken); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API token required. Include 'Authorization: Bearer qb_...' header.",
			})
			return
		}
		c.Next()
	}
}

// GetToken returns the validated token from context, if any.
func GetToken(c *gin.Context) (*Token, bool) {
	v, exists := c.Get(ContextKeyToken)
	if !exists {
		return nil, false
	}
	return v.(*Token), true
}

// UserID returns the authenticated user's ID, or "" when unauthenticated.
func UserID(c *gin.Context) string {
	if id, ok := c.Get(ContextKeyUserID); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
