package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tokenchat/internal/pkg/jwtutil"
	"tokenchat/internal/transport/http/response"
)

const ContextUserIDKey = "auth_user_id"

// AuthJWT requires a valid bearer token when secret is set. With an empty
// secret every request passes through unauthenticated.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing authorization header")
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid authorization scheme")
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// Authorize reports whether the caller may act for userID, writing a 403
// when it may not. Unauthenticated deployments allow everything.
func Authorize(c *gin.Context, userID string) bool {
	subject, ok := c.Get(ContextUserIDKey)
	if !ok {
		return true
	}
	if s, _ := subject.(string); s == userID {
		return true
	}
	response.Error(c, http.StatusForbidden, response.CodeForbidden, "token does not grant access to this user")
	return false
}
