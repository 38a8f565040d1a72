// Package worker runs the batch-scheduler execution loop: lease a submitted
// query, execute it on the embedded engine, stage the completed table as a
// parquet object, and record the terminal state on the queue.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/engine"
	"github.com/tapgate/tapgate/internal/observability"
	"github.com/tapgate/tapgate/internal/queue"
	"github.com/tapgate/tapgate/internal/stage"
	"github.com/tapgate/tapgate/internal/storage"
)

type Config struct {
	// LeaseWait bounds how long one cycle blocks waiting for a submission.
	LeaseWait time.Duration
}

type Service struct {
	Queue       queue.Queue
	Engine      engine.Engine
	ObjectStore storage.ObjectStore
	MapError    func(err error) *driver.ExecError
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	for {
		if err := s.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.Logger.ErrorContext(ctx, "worker cycle failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// ProcessOnce leases and fully processes at most one submission.
func (s *Service) ProcessOnce(ctx context.Context) error {
	s.ensureDefaults()

	sub, ok, err := s.Queue.Lease(ctx, s.Config.LeaseWait)
	if err != nil {
		return fmt.Errorf("lease submission: %w", err)
	}
	if !ok {
		return nil
	}

	proceed, err := s.Queue.MarkExecuting(ctx, sub.JobID)
	if err != nil {
		return fmt.Errorf("mark job %q executing: %w", sub.JobID, err)
	}
	if !proceed {
		s.Logger.InfoContext(ctx, "skipping aborted job", slog.String("job_id", sub.JobID))
		observability.IncrementBatchJob("aborted")
		return nil
	}

	start := s.Clock()
	table, err := s.Engine.Execute(ctx, sub.Query)
	if err != nil {
		execErr := s.MapError(err)
		s.Logger.WarnContext(ctx, "batch execution failed",
			slog.String("job_id", sub.JobID),
			slog.String("kind", execErr.Kind),
			slog.String("message", execErr.Message),
		)
		observability.IncrementBatchJob("failed")
		if markErr := s.Queue.MarkError(ctx, sub.JobID, execErr.Kind, execErr.Message); markErr != nil {
			return fmt.Errorf("mark job %q errored: %w", sub.JobID, markErr)
		}
		return nil
	}

	data, err := stage.EncodeTable(table)
	if err != nil {
		observability.IncrementBatchJob("failed")
		if markErr := s.Queue.MarkError(ctx, sub.JobID, "ResultStagingError", err.Error()); markErr != nil {
			return fmt.Errorf("mark job %q errored: %w", sub.JobID, markErr)
		}
		return nil
	}

	resultPath, err := storage.BuildResultPath(sub.JobID, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("build result path for job %q: %w", sub.JobID, err)
	}
	if _, err := s.ObjectStore.Put(ctx, resultPath, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: storage.ParquetContentType}); err != nil {
		observability.IncrementBatchJob("failed")
		if markErr := s.Queue.MarkError(ctx, sub.JobID, "ResultStagingError", err.Error()); markErr != nil {
			return fmt.Errorf("mark job %q errored: %w", sub.JobID, markErr)
		}
		return nil
	}

	if err := s.Queue.MarkCompleted(ctx, sub.JobID, resultPath); err != nil {
		return fmt.Errorf("mark job %q completed: %w", sub.JobID, err)
	}

	observability.IncrementBatchJob("completed")
	s.Logger.InfoContext(ctx, "batch job completed",
		slog.String("job_id", sub.JobID),
		slog.Int("rows", len(table.Rows)),
		slog.String("duration", s.Clock().Sub(start).String()),
	)
	return nil
}

func (s *Service) ensureDefaults() {
	if s.Config.LeaseWait <= 0 {
		s.Config.LeaseWait = time.Second
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.MapError == nil {
		s.MapError = func(err error) *driver.ExecError {
			return &driver.ExecError{Kind: "QueryExecutionError", Message: err.Error()}
		}
	}
}
