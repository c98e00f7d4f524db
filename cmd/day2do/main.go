package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"day2do/internal/config"
	"day2do/internal/planner"
	"day2do/internal/server"
	"day2do/internal/storage"
	"day2do/internal/storage/redis"
	"day2do/internal/storage/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logger.Info("Day2Do planner starting", slog.String("storage", cfg.Storage))

	blobs, err := openBlobStore(cfg, logger)
	if err != nil {
		logger.Error("unable to open blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer blobs.Close()

	store := planner.New(blobs, logger, planner.Options{
		Retries: cfg.PersistRetries,
		Backoff: cfg.PersistBackoff,
	})

	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	store.Load(loadCtx)
	cancelLoad()

	srv := server.New(store, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Engine(),
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := store.Close(ctx); err != nil {
		logger.Error("unsaved changes at shutdown", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

func openBlobStore(cfg *config.Config, logger *slog.Logger) (storage.BlobStore, error) {
	switch cfg.Storage {
	case config.StorageRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return redis.Open(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, logger)
	default:
		return sqlite.Open(cfg.DBPath, logger)
	}
}
