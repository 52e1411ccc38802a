package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/forgespec/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const contextKeyAuthed = "authed"

// Auth returns a middleware enforcing the static admin bearer token.
// An empty configured token disables every guarded route.
func Auth(token string) gin.HandlerFunc {
	expected := strings.TrimSpace(token)
	return func(c *gin.Context) {
		if expected == "" || !tokenMatches(expected, extractToken(c)) {
			response.Unauthorized(c)
			return
		}
		c.Set(contextKeyAuthed, true)
		c.Next()
	}
}

// OptionalAuth marks the request as authenticated when the token matches, but
// never blocks. Used so rate limiting can exempt the operator.
func OptionalAuth(token string) gin.HandlerFunc {
	expected := strings.TrimSpace(token)
	return func(c *gin.Context) {
		if expected != "" && tokenMatches(expected, extractToken(c)) {
			c.Set(contextKeyAuthed, true)
		}
		c.Next()
	}
}

// IsAuthenticated reports whether the request carried a valid token.
func IsAuthenticated(c *gin.Context) bool {
	v, _ := c.Get(contextKeyAuthed)
	ok, _ := v.(bool)
	return ok
}

func tokenMatches(expected, got string) bool {
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return normalizeToken(auth)
	}
	return normalizeToken(c.Query("token"))
}

// normalizeToken trims spaces and strips an optional Bearer prefix.
func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
