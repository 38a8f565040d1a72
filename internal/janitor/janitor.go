// Package janitor removes expired job records and their staged result
// objects on an interval. Retention is age-based: anything older than the
// configured maximum is dropped regardless of state.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tapgate/tapgate/internal/driver/batch"
	"github.com/tapgate/tapgate/internal/jobstore"
	"github.com/tapgate/tapgate/internal/observability"
	"github.com/tapgate/tapgate/internal/storage"
)

type Config struct {
	Interval time.Duration
	MaxAge   time.Duration
}

type Service struct {
	Store       jobstore.Store
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

type Summary struct {
	JobsScanned    int `json:"jobs_scanned"`
	JobsDeleted    int `json:"jobs_deleted"`
	ObjectsDeleted int `json:"objects_deleted"`
	Failures       int `json:"failures"`
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			summary, err := s.RunOnce(ctx)
			if err != nil {
				s.Logger.ErrorContext(ctx, "retention cycle failed", slog.Any("error", err), slog.Any("summary", summary))
				continue
			}
			s.Logger.InfoContext(ctx, "retention cycle completed", slog.Any("summary", summary))
		}
	}
}

// RunOnce performs a single retention sweep. Staged objects are removed
// before the rows so a failed sweep never leaves unreachable rows behind.
func (s *Service) RunOnce(ctx context.Context) (Summary, error) {
	s.ensureDefaults()
	if s.Store == nil {
		return Summary{}, fmt.Errorf("job store is required")
	}

	cutoff := s.Clock().Add(-s.Config.MaxAge)
	summary := Summary{}

	expired, err := s.Store.ListOlderThan(ctx, cutoff)
	if err != nil {
		return summary, fmt.Errorf("list expired jobs: %w", err)
	}
	summary.JobsScanned = len(expired)

	for _, job := range expired {
		if job.DriverName != batch.Name || s.ObjectStore == nil {
			continue
		}
		key, err := storage.BuildResultPath(job.JobID, job.CreateTime)
		if err != nil {
			summary.Failures++
			s.Logger.WarnContext(ctx, "skipping job with unusable id",
				slog.String("job_id", job.JobID),
				slog.Any("error", err),
			)
			continue
		}
		if err := s.ObjectStore.Delete(ctx, key); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				continue
			}
			summary.Failures++
			s.Logger.WarnContext(ctx, "failed to delete staged result",
				slog.String("job_id", job.JobID),
				slog.String("key", key),
				slog.Any("error", err),
			)
			continue
		}
		summary.ObjectsDeleted++
	}

	deleted, err := s.Store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return summary, fmt.Errorf("delete expired jobs: %w", err)
	}
	summary.JobsDeleted = deleted
	observability.AddJobsReaped(deleted)
	return summary, nil
}

func (s *Service) ensureDefaults() {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Config.Interval <= 0 {
		s.Config.Interval = 10 * time.Minute
	}
	if s.Config.MaxAge <= 0 {
		s.Config.MaxAge = 7 * 24 * time.Hour
	}
}
