package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"character-companion/backend/pkg/jwt"
)

// userIDKey is the gin context key the auth gate stores the resolved
// identity under. Always 'userId' (lowercase 'd').
const userIDKey = "userId"

// AuthMiddleware resolves the Authorization header to a user identity or
// rejects the request. Every pipeline entry point sits behind it; the
// UNAUTHENTICATED code keeps identity failures distinct from all others.
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthenticated(c, "Authorization header is required")
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			abortUnauthenticated(c, "Invalid or expired token")
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "UNAUTHENTICATED",
			"message": message,
		},
	})
}

// currentUserID returns the authenticated user id, zero when absent.
func currentUserID(c *gin.Context) uint {
	value, exists := c.Get(userIDKey)
	if !exists {
		return 0
	}
	userID, ok := value.(uint)
	if !ok {
		return 0
	}
	return userID
}
