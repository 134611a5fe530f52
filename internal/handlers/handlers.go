package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"socialhub/internal/config"
	"socialhub/internal/middleware"
	"socialhub/internal/models"
	"socialhub/internal/ratelimit"
	"socialhub/internal/service"
)

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	auth    *service.AuthService
	limiter ratelimit.Limiter
	checks  map[string]HealthCheck
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	auth *service.AuthService,
	limiter ratelimit.Limiter,
	checks map[string]HealthCheck,
) HandlerSet {
	return HandlerSet{
		log:     log,
		cfg:     cfg,
		auth:    auth,
		limiter: limiter,
		checks:  checks,
	}
}

// Mount registers every route under router, which the server roots at /api.
func (h HandlerSet) Mount(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	requireUser := middleware.Auth(h.auth, AccessCookie, h.respondError)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login",
			middleware.Throttle(h.limiter, "login", h.cfg.RateLimit.LoginAttempts, h.cfg.RateLimit.LoginWindow, h.respondError, h.log),
			h.Login,
		)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", requireUser, h.Me)
	}

	admin := v1.Group("/admin")
	admin.Use(
		requireUser,
		middleware.RequireRoles(h.respondError, models.UserRoleAdmin, models.UserRoleSuperAdmin),
	)
	admin.GET("/users/:id", h.AdminGetUser)
}
