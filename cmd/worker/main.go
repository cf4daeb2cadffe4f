// Package main runs the background video render worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/studio/config"
	"github.com/aura-webinar/studio/internal/catalog"
	"github.com/aura-webinar/studio/internal/realtime"
	"github.com/aura-webinar/studio/internal/release"
	"github.com/aura-webinar/studio/internal/slides"
	"github.com/aura-webinar/studio/internal/webinars"
	"github.com/aura-webinar/studio/internal/worker"
	"github.com/aura-webinar/studio/pkg/database"
	"github.com/aura-webinar/studio/pkg/queue"
	"github.com/aura-webinar/studio/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Render.URL == "" {
		logger.Fatal("RENDER_URL is required")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.PoolOptions("studio-worker"), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Events reach browsers through the servers' Redis subscriptions.
	notifier := realtime.NewHub(logger, realtime.NewBroker(rdb.Client, logger), nil)

	processor := worker.NewRenderProcessor(worker.Config{
		URL:      cfg.Render.URL,
		Renders:  release.NewRepository(pool),
		Webinars: webinars.NewRepository(pool),
		Slides:   slides.NewRepository(pool),
		Catalog:  catalog.NewRepository(pool),
		Jobs:     queue.NewQueue(rdb.Client, logger),
		Notifier: notifier,
		Logger:   logger,
	})

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("worker did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
