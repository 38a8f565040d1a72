// Package redis implements the batch submission queue on Redis lists and
// hashes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tapgate/tapgate/internal/queue"
)

const (
	readyKey   = "tapgate:queue:ready"
	jobPrefix  = "tapgate:queue:job:"
	userPrefix = "tapgate:queue:user:"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type Queue struct {
	client *redis.Client
}

func New(cfg Config) *Queue {
	return &Queue{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// NewWithClient wires an existing client, used by tests against miniredis.
func NewWithClient(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func jobKey(jobID string) string { return jobPrefix + jobID }

func userKey(userID string) string { return userPrefix + userID }

func (q *Queue) Submit(ctx context.Context, sub queue.Submission) error {
	if sub.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobKey(sub.JobID), map[string]any{
		"query":        sub.Query,
		"user_id":      sub.UserID,
		"submitted_at": submittedAt.Format(time.RFC3339Nano),
		"state":        "PENDING",
	})
	pipe.SAdd(ctx, userKey(sub.UserID), sub.JobID)
	pipe.RPush(ctx, readyKey, sub.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job %q: %w", sub.JobID, err)
	}
	return nil
}

func (q *Queue) Lease(ctx context.Context, wait time.Duration) (queue.Submission, bool, error) {
	popped, err := q.client.BLPop(ctx, wait, readyKey).Result()
	if errors.Is(err, redis.Nil) {
		return queue.Submission{}, false, nil
	}
	if err != nil {
		return queue.Submission{}, false, fmt.Errorf("lease job: %w", err)
	}
	if len(popped) != 2 {
		return queue.Submission{}, false, fmt.Errorf("lease job: unexpected pop reply %v", popped)
	}

	record, err := q.Get(ctx, popped[1])
	if err != nil {
		return queue.Submission{}, false, err
	}
	return record.Submission, true, nil
}

func (q *Queue) Get(ctx context.Context, jobID string) (queue.Record, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return queue.Record{}, fmt.Errorf("get job %q: %w", jobID, err)
	}
	if len(fields) == 0 {
		return queue.Record{}, queue.ErrUnknownJob
	}

	submittedAt, _ := time.Parse(time.RFC3339Nano, fields["submitted_at"])
	return queue.Record{
		Submission: queue.Submission{
			JobID:       jobID,
			Query:       fields["query"],
			UserID:      fields["user_id"],
			SubmittedAt: submittedAt,
		},
		State:        fields["state"],
		ErrorKind:    fields["error_kind"],
		ErrorMessage: fields["error_message"],
		ResultPath:   fields["result_path"],
	}, nil
}

func (q *Queue) MarkExecuting(ctx context.Context, jobID string) (bool, error) {
	record, err := q.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if record.State == "ABORTED" {
		return false, nil
	}
	if err := q.client.HSet(ctx, jobKey(jobID), "state", "EXECUTING").Err(); err != nil {
		return false, fmt.Errorf("mark job %q executing: %w", jobID, err)
	}
	return true, nil
}

func (q *Queue) MarkCompleted(ctx context.Context, jobID, resultPath string) error {
	err := q.client.HSet(ctx, jobKey(jobID), map[string]any{
		"state":       "COMPLETED",
		"result_path": resultPath,
	}).Err()
	if err != nil {
		return fmt.Errorf("mark job %q completed: %w", jobID, err)
	}
	return nil
}

func (q *Queue) MarkError(ctx context.Context, jobID, kind, message string) error {
	err := q.client.HSet(ctx, jobKey(jobID), map[string]any{
		"state":         "ERROR",
		"error_kind":    kind,
		"error_message": message,
	}).Err()
	if err != nil {
		return fmt.Errorf("mark job %q errored: %w", jobID, err)
	}
	return nil
}

func (q *Queue) RequestAbort(ctx context.Context, jobID string) (bool, error) {
	record, err := q.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if record.State != "PENDING" {
		return false, nil
	}
	if err := q.client.HSet(ctx, jobKey(jobID), "state", "ABORTED").Err(); err != nil {
		return false, fmt.Errorf("abort job %q: %w", jobID, err)
	}
	return true, nil
}

func (q *Queue) ListByUser(ctx context.Context, userID string) ([]string, error) {
	ids, err := q.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs for user %q: %w", userID, err)
	}
	return ids, nil
}

func (q *Queue) HealthCheck(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping queue: %w", err)
	}
	return nil
}
