// Package batch implements the batch-scheduler execution driver. Submissions
// go onto the shared queue; a separate worker process leases them, executes
// them, and stages the completed table as a parquet object. Polls read live
// state from the queue and fetch the staged object once completed.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/queue"
	"github.com/tapgate/tapgate/internal/result"
	"github.com/tapgate/tapgate/internal/stage"
	"github.com/tapgate/tapgate/internal/storage"
)

// Name is the driver's registry key.
const Name = "batch"

type Driver struct {
	queue queue.Queue
	store storage.ObjectStore
}

func New(q queue.Queue, store storage.ObjectStore) *Driver {
	return &Driver{queue: q, store: store}
}

func (d *Driver) Submit(ctx context.Context, query, userID string) (string, error) {
	jobID := uuid.NewString()
	err := d.queue.Submit(ctx, queue.Submission{
		JobID:       jobID,
		Query:       query,
		UserID:      userID,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("submit batch job: %w", err)
	}
	return jobID, nil
}

func (d *Driver) Job(ctx context.Context, jobID string) (driver.JobStatus, error) {
	record, err := d.queue.Get(ctx, jobID)
	if errors.Is(err, queue.ErrUnknownJob) {
		return driver.JobStatus{}, driver.ErrUnknownJob
	}
	if err != nil {
		return driver.JobStatus{}, err
	}

	status := driver.JobStatus{JobID: jobID, State: driver.State(record.State)}
	switch status.State {
	case driver.StatePending, driver.StateExecuting, driver.StateAborted:
	case driver.StateError:
		status.Error = &driver.ExecError{Kind: record.ErrorKind, Message: record.ErrorMessage}
	case driver.StateCompleted:
		resultPath := record.ResultPath
		status.Result = func(ctx context.Context) (result.Table, error) {
			return d.fetchResult(ctx, resultPath)
		}
	default:
		return driver.JobStatus{}, fmt.Errorf("job %q reports unknown state %q", jobID, record.State)
	}
	return status, nil
}

func (d *Driver) List(ctx context.Context, userID string) ([]string, error) {
	return d.queue.ListByUser(ctx, userID)
}

// Abort takes effect only for jobs the worker has not started executing; the
// worker checks the flag between lease and execution.
func (d *Driver) Abort(ctx context.Context, jobID string) error {
	_, err := d.queue.RequestAbort(ctx, jobID)
	if errors.Is(err, queue.ErrUnknownJob) {
		return driver.ErrUnknownJob
	}
	return err
}

func (d *Driver) fetchResult(ctx context.Context, resultPath string) (result.Table, error) {
	if resultPath == "" {
		return result.Table{}, fmt.Errorf("completed job has no staged result path")
	}
	reader, err := d.store.Get(ctx, resultPath)
	if err != nil {
		return result.Table{}, fmt.Errorf("fetch staged result %q: %w", resultPath, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return result.Table{}, fmt.Errorf("read staged result %q: %w", resultPath, err)
	}
	return stage.DecodeTable(data)
}
