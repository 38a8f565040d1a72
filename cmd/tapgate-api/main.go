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

	"github.com/tapgate/tapgate/internal/api"
	"github.com/tapgate/tapgate/internal/config"
	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/driver/batch"
	"github.com/tapgate/tapgate/internal/driver/distributed"
	"github.com/tapgate/tapgate/internal/driver/interactive"
	duckdbengine "github.com/tapgate/tapgate/internal/engine/duckdb"
	jobpostgres "github.com/tapgate/tapgate/internal/jobstore/postgres"
	"github.com/tapgate/tapgate/internal/observability"
	redisqueue "github.com/tapgate/tapgate/internal/queue/redis"
	s3store "github.com/tapgate/tapgate/internal/storage/s3"
	"github.com/tapgate/tapgate/internal/uws"
)

func main() {
	cfg, err := config.LoadFromEnv("tapgate-api")
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
	jobStore := jobpostgres.NewRepository(jobDB)

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

	jobQueue := redisqueue.New(redisqueue.Config{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})

	interactiveDriver := interactive.New(enginePool, duckdbengine.MapError, logger)

	registry := driver.NewRegistry()
	mustRegister(logger, registry, interactive.Name, interactiveDriver)
	mustRegister(logger, registry, batch.Name, batch.New(jobQueue, objectStore))
	if cfg.Drivers.DistributedDSN != "" {
		distributedDriver, err := distributed.New(distributed.Config{
			DSN:          cfg.Drivers.DistributedDSN,
			MaxOpenConns: cfg.Drivers.DistributedMaxOpenConns,
			MaxIdleConns: cfg.Drivers.DistributedMaxIdleConns,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize distributed driver", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = distributedDriver.Close() }()
		mustRegister(logger, registry, distributed.Name, distributedDriver)
	}
	if _, ok := registry.Lookup(cfg.Drivers.Default); !ok {
		logger.Error("default driver is not registered", slog.String("driver", cfg.Drivers.Default))
		os.Exit(1)
	}

	manager := &uws.Manager{Registry: registry, Store: jobStore, DefaultDriver: cfg.Drivers.Default}

	deps := api.Dependencies{
		Logger:            logger,
		Sync:              interactiveDriver,
		MapSyncError:      duckdbengine.MapError,
		Jobs:              manager,
		DependencyTimeout: time.Second,
		Readiness: api.CombineReadinessChecks(
			jobStore.HealthCheck,
			jobQueue.HealthCheck,
		),
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func mustRegister(logger *slog.Logger, registry *driver.Registry, name string, d driver.Driver) {
	if err := registry.Register(name, d); err != nil {
		logger.Error("failed to register driver", slog.String("driver", name), slog.Any("error", err))
		os.Exit(1)
	}
}
