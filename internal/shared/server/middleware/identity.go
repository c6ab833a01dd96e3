package middleware

import (
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey    = "userId"
	maxUserIDLen = 128
	userIDHeader = "X-User-Id"
)

// Identity records the optional caller-supplied user id. Requests without one
// are anonymous; the id is only echoed back in results and logs.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := cleanUserID(c.GetHeader(userIDHeader)); id != "" {
			c.Set(userIDKey, id)
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the Identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

func cleanUserID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxUserIDLen {
		return ""
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return ""
		}
	}
	return id
}
