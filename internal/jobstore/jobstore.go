// Package jobstore persists the gateway's record of every asynchronous job:
// which driver owns it, who submitted it, and the status snapshot taken at
// creation. Live state always comes from the owning driver; the store exists
// so the gateway can route polls and enforce ownership across restarts.
package jobstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("jobstore: job not found")
	ErrDuplicate = errors.New("jobstore: job id already registered")
)

type Job struct {
	JobID      string
	DriverName string
	// UserID is nil for anonymous submissions.
	UserID     *string
	QueryText  string
	Status     string
	CreateTime time.Time
}

type Store interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, job Job) (Job, error)
	Find(ctx context.Context, jobID string) (Job, error)
	List(ctx context.Context, userID string) ([]Job, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Job, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
