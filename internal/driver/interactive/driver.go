// Package interactive implements the in-process execution driver. Both the
// synchronous path and its async jobs run on the embedded engine's shared
// connection pool; async runs are goroutines tracked in memory, so job
// handles do not survive a process restart.
package interactive

import (
	"context"
	"log/slog"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/driver/runtracker"
	"github.com/tapgate/tapgate/internal/engine"
	"github.com/tapgate/tapgate/internal/result"
)

// Name is the driver's registry key.
const Name = "interactive"

type Driver struct {
	engine  engine.Engine
	mapErr  runtracker.ErrorMapper
	tracker *runtracker.Tracker
}

func New(eng engine.Engine, mapErr runtracker.ErrorMapper, logger *slog.Logger) *Driver {
	return &Driver{
		engine:  eng,
		mapErr:  mapErr,
		tracker: runtracker.New(logger),
	}
}

// Execute runs a query synchronously on the shared pool. The gateway's sync
// endpoint calls this directly so a blocked async backlog cannot delay it.
func (d *Driver) Execute(ctx context.Context, query string) (result.Table, error) {
	return d.engine.Execute(ctx, query)
}

func (d *Driver) Submit(_ context.Context, query, userID string) (string, error) {
	return d.tracker.Start(query, userID, d.engine.Execute, d.mapErr), nil
}

func (d *Driver) Job(_ context.Context, jobID string) (driver.JobStatus, error) {
	return d.tracker.Status(jobID)
}

func (d *Driver) List(_ context.Context, userID string) ([]string, error) {
	return d.tracker.List(userID), nil
}

func (d *Driver) Abort(_ context.Context, jobID string) error {
	return d.tracker.Abort(jobID)
}
