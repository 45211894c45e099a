package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"medialab/api/internal/cache"
	"medialab/api/internal/config"
	"medialab/api/internal/database"
	"medialab/api/internal/gallery"
	"medialab/api/internal/handlers"
	"medialab/api/internal/index"
	"medialab/api/internal/jobs"
	"medialab/api/internal/log"
	"medialab/api/internal/providers/imagegen"
	"medialab/api/internal/providers/videogen"
	"medialab/api/internal/providers/vision"
	"medialab/api/internal/server"
	"medialab/api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureContainers(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure containers failed")
	}

	// The metadata index is optional. Without a DSN the gallery serves from
	// the store alone and every index-dependent surface degrades cleanly.
	var dbPool *pgxpool.Pool
	var metadataIndex gallery.MetadataIndex
	if cfg.Metadata.DSN != "" {
		dbPool, err = database.NewPostgresPool(ctx, cfg.Metadata)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}

		idx := index.New(dbPool, logger)
		if err := idx.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure index schema")
		}
		metadataIndex = idx
	} else {
		logger.Info().Msg("no metadata dsn configured, running store-only")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, folder caching disabled")
		redisClient = nil
	}

	var folderCache gallery.FolderCache
	if redisClient != nil {
		folderCache = cache.NewFolderCache(redisClient, logger)
	}

	service := gallery.NewService(objectStore, metadataIndex, logger)
	planner := gallery.NewPlanner(objectStore, metadataIndex, folderCache, logger)
	runner := gallery.NewRunner(service, objectStore, metadataIndex, cfg.Tasks, logger)

	imageGen := imagegen.NewClient(cfg.Providers.ImageGen, logger)
	videoGen := videogen.NewClient(cfg.Providers.VideoGen, cfg.Providers.PollInterval, cfg.Providers.MaxPolls, logger)
	visionClient := vision.NewClient(cfg.Providers.LLM, logger)

	handlerSet := handlers.NewHandlerSet(
		logger, cfg, objectStore, metadataIndex,
		service, planner, runner,
		imageGen, videoGen, visionClient,
		dbPool, redisClient,
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	var scheduler *jobs.Scheduler
	if metadataIndex != nil {
		scheduler = jobs.NewScheduler(runner, logger)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Msg("scheduler start failed")
		}
	}

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
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	if scheduler != nil {
		<-scheduler.Stop().Done()
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
