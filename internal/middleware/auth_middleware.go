package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
)

const (
	identityKey = "identity"
	userIDKey   = "user_id"
)

// TokenParser turns a bearer token into an identity.
type TokenParser interface {
	Parse(raw string) (*auth.Identity, error)
}

// Authenticate resolves the bearer token, when there is one, and stores the
// caller's identity on the context. A missing or invalid token leaves the
// request anonymous; RequireAuth decides whether that is acceptable.
func Authenticate(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.Next()
			return
		}

		id, err := tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.Set("auth_error", err.Error())
			c.Next()
			return
		}
		c.Set(identityKey, id)
		c.Set(userIDKey, id.UserID)
		c.Next()
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if Identity(c) == nil {
			msg := "Authentication required"
			if reason := c.GetString("auth_error"); reason != "" {
				msg = "Invalid or expired token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}

// Identity returns the caller set by Authenticate, or nil.
func Identity(c *gin.Context) *auth.Identity {
	raw, exists := c.Get(identityKey)
	if !exists {
		return nil
	}
	id, _ := raw.(*auth.Identity)
	return id
}
