// Package migrations applies the embedded job store schema scripts. Each
// migration is an up/down pair under sql/ named NNNNNN_label.up.sql and
// NNNNNN_label.down.sql; applied versions are tracked in a bookkeeping
// table so reruns are idempotent.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const versionTable = "tapgate_schema_migrations"

var scriptNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.(up|down)\.sql$`)

type migration struct {
	Version int64
	UpSQL   string
	DownSQL string
}

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

// Up applies pending migrations in ascending version order. steps limits
// how many run; zero or negative means all. It returns the number applied.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	pending, err := r.pending(ctx, db)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range pending {
		if steps > 0 && applied >= steps {
			break
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("apply migration %d: %w", m.Version, err)
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO `+versionTable+` (version) VALUES ($1)`, m.Version)
			if err != nil {
				return fmt.Errorf("record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// Down rolls back the most recently applied migrations. steps defaults
// to one. It returns the number rolled back.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}

	available, err := loadMigrations(r.fsys)
	if err != nil {
		return 0, err
	}
	if err := ensureVersionTable(ctx, db); err != nil {
		return 0, err
	}
	appliedVersions, err := recordedVersions(ctx, db)
	if err != nil {
		return 0, err
	}
	slices.Reverse(appliedVersions)

	byVersion := make(map[int64]migration, len(available))
	for _, m := range available {
		byVersion[m.Version] = m
	}

	rolledBack := 0
	for _, version := range appliedVersions {
		if rolledBack >= steps {
			break
		}
		m, ok := byVersion[version]
		if !ok {
			return rolledBack, fmt.Errorf("applied migration %d is missing from source", version)
		}
		err := inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
				return fmt.Errorf("roll back migration %d: %w", m.Version, err)
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM `+versionTable+` WHERE version = $1`, m.Version)
			if err != nil {
				return fmt.Errorf("unrecord migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return rolledBack, err
		}
		rolledBack++
	}
	return rolledBack, nil
}

// pending returns the not-yet-applied migrations in ascending order,
// creating the bookkeeping table on first use.
func (r *Runner) pending(ctx context.Context, db *sql.DB) ([]migration, error) {
	available, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, err
	}
	if err := ensureVersionTable(ctx, db); err != nil {
		return nil, err
	}
	appliedVersions, err := recordedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	pending := make([]migration, 0, len(available))
	for _, m := range available {
		if slices.Contains(appliedVersions, m.Version) {
			continue
		}
		pending = append(pending, m)
	}
	return pending, nil
}

func ensureVersionTable(ctx context.Context, db *sql.DB) error {
	query := `
CREATE TABLE IF NOT EXISTS ` + versionTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure version table: %w", err)
	}
	return nil
}

func recordedVersions(ctx context.Context, db *sql.DB) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+versionTable+` ORDER BY version ASC`)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	byVersion := map[int64]migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := path.Base(entry.Name())
		matches := scriptNamePattern.FindStringSubmatch(name)
		if matches == nil {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", name, err)
		}

		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		m := byVersion[version]
		m.Version = version
		if matches[2] == "up" {
			m.UpSQL = string(script)
		} else {
			m.DownSQL = string(script)
		}
		byVersion[version] = m
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", m.Version)
		}
		if strings.TrimSpace(m.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", m.Version)
		}
		migrations = append(migrations, m)
	}
	slices.SortFunc(migrations, func(a, b migration) int {
		return int(a.Version - b.Version)
	})
	return migrations, nil
}
