package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"socialhub/internal/models"
	"socialhub/internal/ratelimit"
	"socialhub/internal/repository"
	"socialhub/internal/security"
	"socialhub/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	engine *gin.Engine
	repo   *repository.MemoryUserRepository
	tokens *security.TokenIssuer
}

func newTestApp(t *testing.T, checks map[string]HealthCheck) *testApp {
	t.Helper()

	cfg := &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTAccessSecret:  "access-secret",
			JWTRefreshSecret: "refresh-secret",
			JWTAccessTTL:     15 * time.Minute,
			JWTRefreshTTL:    24 * time.Hour,
			OperationTimeout: 2 * time.Second,
		},
		Cookie:    config.CookieConfig{Secure: true, Path: "/"},
		RateLimit: config.RateLimitConfig{LoginAttempts: 5, LoginWindow: time.Minute},
	}

	repo := repository.NewMemoryUserRepository()
	hasher := security.NewPasswordHasher(
		security.PasswordPolicy{MinLength: 8, RequireDigit: true, RequireLetter: true},
		security.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16},
	)
	tokens := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  cfg.Security.JWTAccessSecret,
		RefreshSecret: cfg.Security.JWTRefreshSecret,
		AccessTTL:     cfg.Security.JWTAccessTTL,
		RefreshTTL:    cfg.Security.JWTRefreshTTL,
	})
	auth := service.NewAuthService(repo, hasher, tokens, events.Discard{}, cfg, zerolog.Nop())

	engine := gin.New()
	NewHandlerSet(zerolog.Nop(), cfg, auth, ratelimit.NewMemoryLimiter(), checks).Mount(engine.Group("/api"))

	return &testApp{engine: engine, repo: repo, tokens: tokens}
}

func (a *testApp) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) register(t *testing.T, username, email string) *httptest.ResponseRecorder {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"new_user": "Alice Liddell",
		"username": username,
		"email":    email,
		"password": "Secret123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return rec
}

func (a *testApp) login(t *testing.T, email string) *httptest.ResponseRecorder {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": "Secret123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return rec
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func assertSessionCookie(t *testing.T, c *http.Cookie, maxAge time.Duration) {
	t.Helper()
	require.NotNil(t, c)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, int(maxAge.Seconds()), c.MaxAge)
	assert.Equal(t, "/", c.Path)
}

func TestAliceSessionLifecycle(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.register(t, "alice", "a@x.com")
	body := decode(t, rec)
	assert.Equal(t, "User created successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "Alice", user["first_name"])
	assert.Equal(t, "Liddell", user["last_name"])
	assert.NotContains(t, user, "password_hash")
	assertSessionCookie(t, cookieByName(rec, AccessCookie), 15*time.Minute)
	assertSessionCookie(t, cookieByName(rec, RefreshCookie), 24*time.Hour)

	rec = app.login(t, "a@x.com")
	body = decode(t, rec)
	assert.Equal(t, "User logged in successfully", body["message"])
	access := cookieByName(rec, AccessCookie)
	refresh := cookieByName(rec, RefreshCookie)
	assertSessionCookie(t, access, 15*time.Minute)
	assertSessionCookie(t, refresh, 24*time.Hour)
	assert.Equal(t, access.Value, body["token"])
	assert.Equal(t, refresh.Value, body["refreshtoken"])

	claims, err := app.tokens.VerifyAccess(access.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(user["id"].(float64)), claims.UserID)
	assert.Equal(t, models.UserRoleUser, claims.Role)

	rec = app.do(http.MethodGet, "/api/v1/auth/me", nil, access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode(t, rec)["user"].(map[string]any)["username"])

	rec = app.do(http.MethodPost, "/api/v1/auth/logout", nil, access, refresh)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	for _, name := range sessionCookies {
		c := cookieByName(rec, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value, name)
		assert.Negative(t, c.MaxAge, name)
	}

	stored, err := app.repo.FindByID(context.Background(), claims.UserID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLogout)

	// no server-side revocation: the old access token works until it expires
	rec = app.do(http.MethodGet, "/api/v1/auth/me", nil, access)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterErrors(t *testing.T) {
	app := newTestApp(t, nil)
	app.register(t, "alice", "a@x.com")

	tests := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{name: "missing new_user", body: gin.H{"username": "bob", "email": "b@x.com", "password": "Secret123"}, status: http.StatusBadRequest, code: "bad_request"},
		{name: "missing password", body: gin.H{"new_user": "Bob", "username": "bob", "email": "b@x.com"}, status: http.StatusBadRequest, code: "bad_request"},
		{name: "malformed email", body: gin.H{"new_user": "Bob", "username": "bob", "email": "nope", "password": "Secret123"}, status: http.StatusBadRequest, code: "bad_request"},
		{name: "weak password", body: gin.H{"new_user": "Bob", "username": "bob", "email": "b@x.com", "password": "letters-only"}, status: http.StatusBadRequest, code: "password_validation"},
		{name: "duplicate email", body: gin.H{"new_user": "Bob", "username": "bob", "email": "A@X.com", "password": "Secret123"}, status: http.StatusConflict, code: "email_in_use"},
		{name: "duplicate username", body: gin.H{"new_user": "Bob", "username": "ALICE", "email": "b@x.com", "password": "Secret123"}, status: http.StatusConflict, code: "username_in_use"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/api/v1/auth/register", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec)["error"])
			assert.Nil(t, cookieByName(rec, AccessCookie))
		})
	}
	assert.Equal(t, 1, app.repo.Len())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	app := newTestApp(t, nil)
	app.register(t, "alice", "a@x.com")

	unknown := app.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "nobody@x.com", "password": "Secret123"})
	wrong := app.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "a@x.com", "password": "Wrong1234"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.JSONEq(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, "invalid_credentials", decode(t, wrong)["error"])
	assert.Nil(t, cookieByName(wrong, AccessCookie))

	rec := app.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSuspended(t *testing.T) {
	app := newTestApp(t, nil)
	app.register(t, "alice", "a@x.com")
	user, err := app.repo.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	app.repo.SetStatus(user.ID, models.UserStatusSuspended)

	rec := app.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "a@x.com", "password": "Secret123"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_suspended", decode(t, rec)["error"])
}

func TestLoginThrottled(t *testing.T) {
	app := newTestApp(t, nil)

	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		last = app.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "a@x.com", "password": "Secret123"})
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "too_many_requests", decode(t, last)["error"])
}

func TestRefresh(t *testing.T) {
	app := newTestApp(t, nil)
	app.register(t, "alice", "a@x.com")
	login := app.login(t, "a@x.com")
	access := cookieByName(login, AccessCookie)
	refresh := cookieByName(login, RefreshCookie)

	user, err := app.repo.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	app.repo.SetRole(user.ID, models.UserRoleAdmin)

	rec := app.do(http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Token refreshed successfully", body["message"])
	assert.Equal(t, float64(user.ID), body["id"])
	assert.Equal(t, "admin", body["role"])

	assertSessionCookie(t, cookieByName(rec, AccessCookie), 15*time.Minute)
	assert.Nil(t, cookieByName(rec, RefreshCookie))

	rec = app.do(http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no_refresh_token", decode(t, rec)["error"])

	// an access token is not accepted in the refresh cookie
	rec = app.do(http.MethodPost, "/api/v1/auth/refresh", nil, &http.Cookie{Name: RefreshCookie, Value: access.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(t, rec)["error"])

	app.repo.Delete(user.ID)
	rec = app.do(http.MethodPost, "/api/v1/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user_not_found", decode(t, rec)["error"])
}

func TestLogoutWithoutTokenStillClearsCookies(t *testing.T) {
	app := newTestApp(t, nil)

	rec := app.do(http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no_token", decode(t, rec)["error"])
	for _, name := range sessionCookies {
		assert.NotNil(t, cookieByName(rec, name), name)
	}

	rec = app.do(http.MethodPost, "/api/v1/auth/logout", nil, &http.Cookie{Name: AccessCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotNil(t, cookieByName(rec, AccessCookie))
}

func TestGuardedRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	app.register(t, "alice", "a@x.com")
	app.register(t, "root", "root@x.com")

	root, err := app.repo.FindByEmail(context.Background(), "root@x.com")
	require.NoError(t, err)
	app.repo.SetRole(root.ID, models.UserRoleSuperAdmin)

	userCookie := cookieByName(app.login(t, "a@x.com"), AccessCookie)
	rootCookie := cookieByName(app.login(t, "root@x.com"), AccessCookie)

	rec := app.do(http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "no_token", decode(t, rec)["error"])

	rec = app.do(http.MethodGet, "/api/v1/auth/me", nil, &http.Cookie{Name: AccessCookie, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(t, rec)["error"])

	path := fmt.Sprintf("/api/v1/admin/users/%d", root.ID)
	rec = app.do(http.MethodGet, path, nil, userCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(http.MethodGet, path, nil, rootCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", decode(t, rec)["user"].(map[string]any)["username"])

	rec = app.do(http.MethodGet, "/api/v1/admin/users/999", nil, rootCookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(http.MethodGet, "/api/v1/admin/users/abc", nil, rootCookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
		"cache":    func(context.Context) error { return errors.New("connection refused") },
	})

	rec := app.do(http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"database":"ok","cache":"error"},"environment":"test"}`, rec.Body.String())
}

func TestLookupError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrBadRequest, http.StatusBadRequest, "bad_request"},
		{fmt.Errorf("%w: too short", service.ErrPasswordValidation), http.StatusBadRequest, "password_validation"},
		{service.ErrLogin, http.StatusUnauthorized, "invalid_credentials"},
		{service.ErrInvalidPassword, http.StatusUnauthorized, "invalid_credentials"},
		{fmt.Errorf("%w: expired", service.ErrVerifyingToken), http.StatusUnauthorized, "unauthorized"},
		{service.ErrUserWithIDNotFound, http.StatusNotFound, "user_not_found"},
		{service.ErrGeneratingToken, http.StatusInternalServerError, "internal_server_error"},
		{fmt.Errorf("%w: %w", service.ErrInternal, context.DeadlineExceeded), http.StatusInternalServerError, "internal_server_error"},
		{errors.New("unmapped"), http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			api := lookupError(tt.err)
			assert.Equal(t, tt.status, api.status)
			assert.Equal(t, tt.code, api.code)
		})
	}
}

func TestSplitDisplayName(t *testing.T) {
	first, last := splitDisplayName("  Mary  Ann Evans ")
	assert.Equal(t, "Mary", first)
	assert.Equal(t, "Ann Evans", last)

	first, last = splitDisplayName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)
}
