// Package queue defines the submission queue the batch-scheduler driver
// hands queries to and the worker leases them from.
package queue

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownJob = errors.New("queue: unknown job")

// Submission is one queued query job.
type Submission struct {
	JobID       string
	Query       string
	UserID      string
	SubmittedAt time.Time
}

// Record is the queue's live view of one job. State values follow the driver
// lifecycle vocabulary; ErrorKind/ErrorMessage are set only in the ERROR
// state, ResultPath only in COMPLETED.
type Record struct {
	Submission
	State        string
	ErrorKind    string
	ErrorMessage string
	ResultPath   string
}

type Queue interface {
	// Submit enqueues a new job in the PENDING state.
	Submit(ctx context.Context, sub Submission) error
	// Lease pops the next pending job, blocking up to wait. A zero-value
	// Submission with ok=false means the wait elapsed empty.
	Lease(ctx context.Context, wait time.Duration) (Submission, bool, error)
	// Get returns the live record for a job.
	Get(ctx context.Context, jobID string) (Record, error)
	// MarkExecuting transitions a leased job to EXECUTING. It reports false
	// when the job was aborted between submission and lease.
	MarkExecuting(ctx context.Context, jobID string) (bool, error)
	// MarkCompleted records the staged result object path.
	MarkCompleted(ctx context.Context, jobID, resultPath string) error
	// MarkError records a terminal execution failure.
	MarkError(ctx context.Context, jobID, kind, message string) error
	// RequestAbort aborts a job that has not started executing yet and
	// reports whether the abort took effect.
	RequestAbort(ctx context.Context, jobID string) (bool, error)
	// ListByUser enumerates job ids submitted by a principal.
	ListByUser(ctx context.Context, userID string) ([]string, error)
	// HealthCheck verifies queue connectivity.
	HealthCheck(ctx context.Context) error
}
