package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campustrack/internal/identity"
)

const claimsKey = "claims"

// Auth enforces a bearer session token checked against the registry, storing
// the claims and raw token in the request context.
func Auth(registry *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := registry.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Set("token", tokenStr)
		c.Next()
	}
}

// RequireTeacher rejects sessions whose role is not teacher. Must run after Auth.
func RequireTeacher() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok || claims.Role != identity.RoleTeacher {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied, teachers only"})
			return
		}
		c.Next()
	}
}

// ClaimsFrom extracts the verified claims set by Auth.
func ClaimsFrom(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// TokenFrom extracts the raw bearer token set by Auth.
func TokenFrom(c *gin.Context) string {
	return c.GetString("token")
}
