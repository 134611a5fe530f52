package middleware

import (
	"github.com/gin-gonic/gin"

	"socialhub/internal/models"
	"socialhub/internal/service"
)

// RequireRoles must run after Auth.
func RequireRoles(fail ErrorResponder, roles ...models.UserRole) gin.HandlerFunc {
	roleSet := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			fail(c, service.ErrUnauthorized)
			return
		}

		if _, ok := roleSet[principal.Role]; !ok {
			fail(c, service.ErrForbidden)
			return
		}

		c.Next()
	}
}
