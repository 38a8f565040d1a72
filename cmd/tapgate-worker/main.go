package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tapgate/tapgate/internal/config"
	duckdbengine "github.com/tapgate/tapgate/internal/engine/duckdb"
	"github.com/tapgate/tapgate/internal/observability"
	redisqueue "github.com/tapgate/tapgate/internal/queue/redis"
	s3store "github.com/tapgate/tapgate/internal/storage/s3"
	"github.com/tapgate/tapgate/internal/worker"
)

func main() {
	cfg, err := config.LoadFromEnv("tapgate-worker")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	enginePool := duckdbengine.NewPool(duckdbengine.Config{
		Path:            cfg.Drivers.DuckDBPath,
		MaxOpenConns:    cfg.Drivers.DuckDBMaxOpenConns,
		MaxIdleConns:    cfg.Drivers.DuckDBMaxIdleConns,
		ConnMaxIdleTime: cfg.Drivers.DuckDBConnMaxIdleTime,
	})
	defer func() { _ = enginePool.Close() }()

	svc := &worker.Service{
		Queue: redisqueue.New(redisqueue.Config{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		}),
		Engine:      enginePool,
		ObjectStore: objectStore,
		MapError:    duckdbengine.MapError,
		Config: worker.Config{
			LeaseWait: cfg.Queue.LeaseWait,
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("batch worker started")
	if err := svc.Run(ctx); err != nil {
		logger.Error("batch worker failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("batch worker stopped")
}
