package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"socialhub/internal/cache"
	"socialhub/internal/config"
	"socialhub/internal/database"
	"socialhub/internal/events"
	"socialhub/internal/handlers"
	"socialhub/internal/jobs"
	"socialhub/internal/log"
	"socialhub/internal/ratelimit"
	"socialhub/internal/repository"
	"socialhub/internal/security"
	"socialhub/internal/server"
	"socialhub/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()
	checks := make(map[string]handlers.HealthCheck)

	var (
		dbPool *pgxpool.Pool
		users  service.UserStore
	)
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn().Msg("using in-memory user store; data is lost on restart")
		users = repository.NewMemoryUserRepository()
	default:
		dbPool, err = database.NewPostgresPool(ctx, cfg.Postgres, cfg.Database.Migrate)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		users = repository.NewUserRepository(dbPool)
		checks["database"] = dbPool.Ping
	}

	var (
		publisher events.Publisher = events.Discard{}
		limiter   ratelimit.Limiter
		scheduler *jobs.Scheduler
	)
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable; auth events disabled, login throttle is per process")
		limiter = ratelimit.NewMemoryLimiter()
	} else {
		publisher = events.NewRedisPublisher(redisClient, cfg.Queue.Stream)
		limiter = ratelimit.NewRedisLimiter(redisClient, "socialhub:ratelimit:")
		checks["cache"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }

		scheduler = jobs.NewScheduler(publisher, logger)
		if err := scheduler.Start(cfg.Jobs.SweepSchedule); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
		}
	}

	hasher := security.NewPasswordHasher(security.PasswordPolicy{
		MinLength:     cfg.Security.Password.MinLength,
		MaxLength:     cfg.Security.Password.MaxLength,
		RequireDigit:  cfg.Security.Password.RequireDigit,
		RequireLetter: cfg.Security.Password.RequireLetter,
	}, security.DefaultArgon2Params)
	tokens := security.NewTokenIssuer(security.TokenConfig{
		AccessSecret:  cfg.Security.JWTAccessSecret,
		RefreshSecret: cfg.Security.JWTRefreshSecret,
		AccessTTL:     cfg.Security.JWTAccessTTL,
		RefreshTTL:    cfg.Security.JWTRefreshTTL,
		Issuer:        cfg.Security.JWTIssuer,
	})
	authService := service.NewAuthService(users, hasher, tokens, publisher, cfg, logger)

	handlerSet := handlers.NewHandlerSet(logger, cfg, authService, limiter, checks)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("scheduler stop timed out")
		}
	}

	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
