package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"betledger/internal/auth"
)

const ctxUserID = "user_id"

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireUser validates the bearer token and stores the caller's user id
// in the request context.
func RequireUser(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			Error(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}
		userID, err := tokens.Validate(raw)
		if err != nil {
			Error(c, http.StatusUnauthorized, "invalid token", nil)
			c.Abort()
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// RequireAdmin guards the admin surface with a static token.
func RequireAdmin(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			raw = c.GetHeader("X-Admin-Token")
		}
		if adminToken == "" ||
			subtle.ConstantTimeCompare([]byte(raw), []byte(adminToken)) != 1 {
			Error(c, http.StatusUnauthorized, "admin access denied", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
