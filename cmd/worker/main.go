package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"socialhub/internal/cache"
	"socialhub/internal/config"
	"socialhub/internal/database"
	"socialhub/internal/log"
	"socialhub/internal/queue"
	"socialhub/internal/repository"
	"socialhub/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel).With().Str("component", "worker").Logger()

	if cfg.Database.Driver != "postgres" {
		logger.Fatal().Str("driver", cfg.Database.Driver).Msg("worker needs the postgres driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the api owns migrations
	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewProcessor(repository.NewUserRepository(dbPool), cfg.Jobs.DormantAfter, logger)
	consumer := queue.NewConsumer(client, queue.Options{
		Stream:        cfg.Queue.Stream,
		Group:         cfg.Queue.Group,
		Consumer:      cfg.Queue.Consumer,
		ClaimInterval: cfg.Queue.ClaimInterval,
	}, logger, processor)

	logger.Info().Str("stream", cfg.Queue.Stream).Str("group", cfg.Queue.Group).Msg("worker started")

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		return
	}

	logger.Info().Msg("worker exited cleanly")
}
