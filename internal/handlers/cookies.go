package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	AccessCookie  = "token"
	RefreshCookie = "refreshtoken"
)

// sessionCookies are cleared on logout. Besides the two token cookies the web
// client keeps cached profile state under the others.
var sessionCookies = []string{AccessCookie, RefreshCookie, "user", "users", "profileUser", "followStatus"}

func (h HandlerSet) setSessionCookie(c *gin.Context, name, value string, ttl time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cookiePath(),
		Domain:   h.cfg.Cookie.Domain,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   h.cfg.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h HandlerSet) setAccessCookie(c *gin.Context, token string) {
	h.setSessionCookie(c, AccessCookie, token, h.cfg.Security.JWTAccessTTL)
}

func (h HandlerSet) setRefreshCookie(c *gin.Context, token string) {
	h.setSessionCookie(c, RefreshCookie, token, h.cfg.Security.JWTRefreshTTL)
}

func (h HandlerSet) clearSessionCookies(c *gin.Context) {
	for _, name := range sessionCookies {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     h.cookiePath(),
			Domain:   h.cfg.Cookie.Domain,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   h.cfg.Cookie.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (h HandlerSet) cookiePath() string {
	if h.cfg.Cookie.Path == "" {
		return "/"
	}
	return h.cfg.Cookie.Path
}
