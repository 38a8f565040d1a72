package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tapgate/tapgate/internal/jobstore"
)

const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping job store db: %w", err)
	}
	return nil
}

// Create registers a job record. The job_id unique index makes concurrent
// registration of the same id fail atomically with ErrDuplicate.
func (r *Repository) Create(ctx context.Context, job jobstore.Job) (jobstore.Job, error) {
	query := `
INSERT INTO uws_job (job_id, driver_name, user_id, query_text, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING create_time`

	var createTime time.Time
	err := r.db.QueryRowContext(ctx, query, job.JobID, job.DriverName, job.UserID, job.QueryText, job.Status).Scan(&createTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return jobstore.Job{}, jobstore.ErrDuplicate
		}
		return jobstore.Job{}, fmt.Errorf("create job: %w", err)
	}
	job.CreateTime = createTime
	return job, nil
}

func (r *Repository) Find(ctx context.Context, jobID string) (jobstore.Job, error) {
	query := `
SELECT job_id, driver_name, user_id, query_text, status, create_time
FROM uws_job
WHERE job_id = $1`

	var job jobstore.Job
	if err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.JobID,
		&job.DriverName,
		&job.UserID,
		&job.QueryText,
		&job.Status,
		&job.CreateTime,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return jobstore.Job{}, jobstore.ErrNotFound
		}
		return jobstore.Job{}, fmt.Errorf("find job: %w", err)
	}
	return job, nil
}

func (r *Repository) List(ctx context.Context, userID string) ([]jobstore.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT job_id, driver_name, user_id, query_text, status, create_time
FROM uws_job
WHERE user_id = $1
ORDER BY create_time ASC, job_id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]jobstore.Job, 0)
	for rows.Next() {
		var job jobstore.Job
		if err := rows.Scan(&job.JobID, &job.DriverName, &job.UserID, &job.QueryText, &job.Status, &job.CreateTime); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// ListOlderThan returns expired job records so the janitor can remove their
// staged result objects before deleting the rows.
func (r *Repository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]jobstore.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT job_id, driver_name, user_id, query_text, status, create_time
FROM uws_job
WHERE create_time < $1
ORDER BY create_time ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]jobstore.Job, 0)
	for rows.Next() {
		var job jobstore.Job
		if err := rows.Scan(&job.JobID, &job.DriverName, &job.UserID, &job.QueryText, &job.Status, &job.CreateTime); err != nil {
			return nil, fmt.Errorf("scan expired job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired job rows: %w", err)
	}
	return jobs, nil
}

func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM uws_job
WHERE create_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted jobs: %w", err)
	}
	return int(affected), nil
}
