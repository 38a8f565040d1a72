package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tapgate/tapgate/internal/config"
	"github.com/tapgate/tapgate/internal/janitor"
	jobpostgres "github.com/tapgate/tapgate/internal/jobstore/postgres"
	"github.com/tapgate/tapgate/internal/observability"
	s3store "github.com/tapgate/tapgate/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("tapgate-janitor")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	jobDB, err := jobpostgres.Open(context.Background(), jobpostgres.DBConfig{
		DSN:             cfg.JobStore.DSN,
		MaxOpenConns:    cfg.JobStore.MaxOpenConns,
		MaxIdleConns:    cfg.JobStore.MaxIdleConns,
		ConnMaxIdleTime: cfg.JobStore.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.JobStore.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open job store db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = jobDB.Close() }()

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

	svc := &janitor.Service{
		Store:       jobpostgres.NewRepository(jobDB),
		ObjectStore: objectStore,
		Config: janitor.Config{
			Interval: cfg.Janitor.Interval,
			MaxAge:   cfg.Janitor.MaxAge,
		},
		Logger: logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("janitor started")
	if err := svc.Run(ctx); err != nil {
		logger.Error("janitor failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("janitor stopped")
}
