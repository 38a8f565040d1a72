// Package distributed implements the execution driver for a remote
// distributed-query cluster that speaks the Postgres wire protocol. Queries
// run over a shared database/sql pool; async runs are goroutines tracked in
// memory the same way the interactive driver tracks them.
package distributed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/driver/runtracker"
	"github.com/tapgate/tapgate/internal/result"
)

// Name is the driver's registry key.
const Name = "distributed"

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
}

type Driver struct {
	db      *sql.DB
	tracker *runtracker.Tracker
}

func New(cfg Config, logger *slog.Logger) (*Driver, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open cluster pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an existing pool. Tests use it with sqlmock.
func NewWithDB(db *sql.DB, logger *slog.Logger) *Driver {
	return &Driver{db: db, tracker: runtracker.New(logger)}
}

// Execute runs a query synchronously against the cluster.
func (d *Driver) Execute(ctx context.Context, query string) (result.Table, error) {
	sqlText := strings.TrimSpace(query)
	if sqlText == "" {
		return result.Table{}, fmt.Errorf("query is required")
	}

	rows, err := d.db.QueryContext(ctx, sqlText)
	if err != nil {
		return result.Table{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return result.BuildFromRows(rows)
}

func (d *Driver) Submit(_ context.Context, query, userID string) (string, error) {
	return d.tracker.Start(query, userID, d.Execute, MapError), nil
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

func (d *Driver) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping cluster: %w", err)
	}
	return nil
}

func (d *Driver) Close() error {
	return d.db.Close()
}
