package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"socialhub/internal/models"
	"socialhub/internal/service"
)

const principalKey = "principal"

// ErrorResponder writes the error response and aborts the chain.
type ErrorResponder func(c *gin.Context, err error)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Principal, error)
}

// Auth admits requests whose access cookie resolves to an existing, usable
// account. Tokens are read from the cookie only.
func Auth(auth Authenticator, cookieName string, fail ErrorResponder) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			fail(c, service.ErrNoToken)
			return
		}

		principal, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			fail(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}
