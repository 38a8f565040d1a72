// Package runtracker tracks in-process asynchronous query runs for drivers
// that execute on goroutines against a live connection pool. It owns the
// state transitions the driver reports through Job.
package runtracker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/result"
)

// Executor runs one query to completion and materializes its table.
type Executor func(ctx context.Context, query string) (result.Table, error)

// ErrorMapper translates a backend failure into the standard execution-error
// shape immediately after a failed execution call. Each driver supplies its
// own backend-specific mapping.
type ErrorMapper func(err error) *driver.ExecError

type run struct {
	jobID  string
	userID string
	state  driver.State
	err    *driver.ExecError
	table  result.Table
	cancel context.CancelFunc
	done   chan struct{}
}

type Tracker struct {
	mu     sync.Mutex
	runs   map[string]*run
	logger *slog.Logger
}

func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{runs: make(map[string]*run), logger: logger}
}

// Start begins executing query on a new goroutine and returns the run's
// handle immediately.
func (t *Tracker) Start(query, userID string, exec Executor, mapErr ErrorMapper) string {
	jobID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	entry := &run{
		jobID:  jobID,
		userID: userID,
		state:  driver.StatePending,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	t.runs[jobID] = entry
	t.mu.Unlock()

	go func() {
		defer cancel()
		defer close(entry.done)

		t.transition(entry, driver.StateExecuting, nil, result.Table{})
		table, err := exec(ctx, query)
		switch {
		case err == nil:
			t.transition(entry, driver.StateCompleted, nil, table)
		case errors.Is(err, context.Canceled):
			t.transition(entry, driver.StateAborted, nil, result.Table{})
		default:
			execErr := mapErr(err)
			t.logger.Warn("async run failed",
				slog.String("job_id", jobID),
				slog.String("kind", execErr.Kind),
				slog.String("message", execErr.Message),
			)
			t.transition(entry, driver.StateError, execErr, result.Table{})
		}
	}()

	return jobID
}

func (t *Tracker) transition(entry *run, state driver.State, execErr *driver.ExecError, table result.Table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// A run cancelled between transitions stays terminal.
	if entry.state.Terminal() {
		return
	}
	entry.state = state
	entry.err = execErr
	entry.table = table
}

// Status reports the live state of one run.
func (t *Tracker) Status(jobID string) (driver.JobStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.runs[jobID]
	if !ok {
		return driver.JobStatus{}, driver.ErrUnknownJob
	}

	status := driver.JobStatus{JobID: jobID, State: entry.state, Error: entry.err}
	if entry.state == driver.StateCompleted {
		table := entry.table
		status.Result = func(context.Context) (result.Table, error) {
			return table, nil
		}
	}
	return status, nil
}

// List returns the run handles owned by a principal, newest-last by id order.
func (t *Tracker) List(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0)
	for id, entry := range t.runs {
		if entry.userID == userID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Abort cancels a run's context. A run that already reached a terminal state
// is left untouched.
func (t *Tracker) Abort(jobID string) error {
	t.mu.Lock()
	entry, ok := t.runs[jobID]
	if !ok {
		t.mu.Unlock()
		return driver.ErrUnknownJob
	}
	if entry.state.Terminal() {
		t.mu.Unlock()
		return nil
	}
	entry.state = driver.StateAborted
	entry.err = nil
	cancel := entry.cancel
	t.mu.Unlock()

	cancel()
	return nil
}

// Wait blocks until the run reaches a terminal state. Tests and the
// synchronous fallbacks use it; the HTTP path never does.
func (t *Tracker) Wait(ctx context.Context, jobID string) error {
	t.mu.Lock()
	entry, ok := t.runs[jobID]
	t.mu.Unlock()
	if !ok {
		return driver.ErrUnknownJob
	}
	select {
	case <-entry.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
