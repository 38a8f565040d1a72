// Package uws coordinates the asynchronous job lifecycle across the driver
// registry and the job store: submissions are handed to a driver and
// registered durably, and polls are routed back to the owning driver for
// live state.
package uws

import (
	"context"
	"errors"
	"fmt"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/jobstore"
	"github.com/tapgate/tapgate/internal/observability"
)

// ErrUnknownDriver marks a stored job whose driver is no longer registered.
// Callers must surface it distinctly from an unknown job id.
var ErrUnknownDriver = errors.New("uws: job's driver is not registered")

type Manager struct {
	Registry      *driver.Registry
	Store         jobstore.Store
	DefaultDriver string
}

// SubmitAsync hands the query to the default driver and registers the job.
// The stored status is the snapshot at creation; live state always comes
// from Poll.
func (m *Manager) SubmitAsync(ctx context.Context, query, userID string) (string, error) {
	d, ok := m.Registry.Lookup(m.DefaultDriver)
	if !ok {
		return "", fmt.Errorf("default driver %q: %w", m.DefaultDriver, ErrUnknownDriver)
	}

	jobID, err := d.Submit(ctx, query, userID)
	if err != nil {
		return "", fmt.Errorf("submit to driver %q: %w", m.DefaultDriver, err)
	}

	record := jobstore.Job{
		JobID:      jobID,
		DriverName: m.DefaultDriver,
		QueryText:  query,
		Status:     string(driver.StatePending),
	}
	if userID != "" {
		record.UserID = &userID
	}
	if _, err := m.Store.Create(ctx, record); err != nil {
		return "", fmt.Errorf("register job %q: %w", jobID, err)
	}

	observability.IncrementJobSubmission(m.DefaultDriver)
	return jobID, nil
}

// Poll resolves a job id to its owning driver and returns the live status.
func (m *Manager) Poll(ctx context.Context, jobID string) (driver.JobStatus, error) {
	record, err := m.Store.Find(ctx, jobID)
	if err != nil {
		return driver.JobStatus{}, err
	}

	d, ok := m.Registry.Lookup(record.DriverName)
	if !ok {
		return driver.JobStatus{}, fmt.Errorf("driver %q for job %q: %w", record.DriverName, jobID, ErrUnknownDriver)
	}

	status, err := d.Job(ctx, jobID)
	if err != nil {
		return driver.JobStatus{}, err
	}
	observability.IncrementJobPoll(string(status.State))
	return status, nil
}

// Abort cancels a job when its driver supports cancellation.
func (m *Manager) Abort(ctx context.Context, jobID string) error {
	record, err := m.Store.Find(ctx, jobID)
	if err != nil {
		return err
	}
	d, ok := m.Registry.Lookup(record.DriverName)
	if !ok {
		return fmt.Errorf("driver %q for job %q: %w", record.DriverName, jobID, ErrUnknownDriver)
	}
	aborter, ok := d.(driver.Aborter)
	if !ok {
		return driver.ErrNotImplemented
	}
	return aborter.Abort(ctx, jobID)
}

// ListJobs returns the caller's registered jobs.
func (m *Manager) ListJobs(ctx context.Context, userID string) ([]jobstore.Job, error) {
	return m.Store.List(ctx, userID)
}
