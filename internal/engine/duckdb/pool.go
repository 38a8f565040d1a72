package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tapgate/tapgate/internal/result"
)

type Config struct {
	// Path of the database file; empty means in-memory.
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
}

// Pool is the process-wide engine-and-pool object. The underlying database
// is opened on first need and lives for the process lifetime; concurrent
// requests share pooled connections and wait on ordinary pool backpressure.
type Pool struct {
	cfg     Config
	once    sync.Once
	db      *sql.DB
	openErr error
}

func NewPool(cfg Config) *Pool {
	return &Pool{cfg: cfg}
}

func (p *Pool) open() {
	db, err := sql.Open("duckdb", p.cfg.Path)
	if err != nil {
		p.openErr = fmt.Errorf("open duckdb: %w", err)
		return
	}
	if p.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.cfg.MaxOpenConns)
	}
	if p.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.cfg.MaxIdleConns)
	}
	if p.cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(p.cfg.ConnMaxIdleTime)
	}
	p.db = db
}

// DB returns the lazily created shared pool.
func (p *Pool) DB() (*sql.DB, error) {
	p.once.Do(p.open)
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.db, nil
}

// Execute runs a query on the shared pool and materializes the full table.
func (p *Pool) Execute(ctx context.Context, query string) (result.Table, error) {
	sqlText := stripTrailingSemicolons(query)
	if sqlText == "" {
		return result.Table{}, fmt.Errorf("query is required")
	}

	db, err := p.DB()
	if err != nil {
		return result.Table{}, err
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return result.Table{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return result.BuildFromRows(rows)
}

func (p *Pool) HealthCheck(ctx context.Context) error {
	db, err := p.DB()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping duckdb: %w", err)
	}
	return nil
}

func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
