package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialhub/internal/config"
	"socialhub/internal/events"
	"socialhub/internal/handlers"
	"socialhub/internal/ratelimit"
	"socialhub/internal/repository"
	"socialhub/internal/security"
	"socialhub/internal/service"
)

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		Environment:      "test",
		HTTP:             config.HTTPConfig{Host: "127.0.0.1", Port: 0},
		Security:         config.SecurityConfig{JWTAccessSecret: "a", JWTRefreshSecret: "r", JWTAccessTTL: time.Minute, JWTRefreshTTL: time.Hour},
		AllowCORSOrigins: []string{"https://app.example.com"},
	}
	auth := service.NewAuthService(
		repository.NewMemoryUserRepository(),
		security.NewPasswordHasher(security.PasswordPolicy{MinLength: 8}, security.DefaultArgon2Params),
		security.NewTokenIssuer(security.TokenConfig{AccessSecret: "a", RefreshSecret: "r", AccessTTL: time.Minute, RefreshTTL: time.Hour}),
		events.Discard{},
		cfg,
		zerolog.Nop(),
	)
	h := handlers.NewHandlerSet(zerolog.Nop(), cfg, auth, ratelimit.NewMemoryLimiter(), nil)
	return NewHTTPServer(cfg, zerolog.Nop(), h)
}

func TestServerWiresMiddlewareAndRoutes(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"status":"ok","checks":{},"environment":"test"}`, rec.Body.String())
}

func TestServerGuardsProtectedRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
