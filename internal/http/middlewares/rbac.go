package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			abort(c, http.StatusForbidden, "Missing identity context")
			return
		}

		if !p.HasRole(required) {
			abort(c, http.StatusForbidden, required+" role required")
			return
		}

		c.Next()
	}
}
