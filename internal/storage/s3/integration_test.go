//go:build integration

package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tapgate/tapgate/internal/result"
	"github.com/tapgate/tapgate/internal/stage"
	"github.com/tapgate/tapgate/internal/storage"
)

// Stages a parquet-encoded result table against a live MinIO, reads it back
// through the store, and sweeps it the way the janitor would.
func TestStoreStagesAndSweepsResultTable(t *testing.T) {
	endpoint := envOr("TAPGATE_TEST_S3_ENDPOINT", "")
	if endpoint == "" {
		t.Skip("TAPGATE_TEST_S3_ENDPOINT is not set")
	}

	cfg := Config{
		Endpoint:         endpoint,
		Region:           envOr("TAPGATE_TEST_S3_REGION", "us-east-1"),
		Bucket:           envOr("TAPGATE_TEST_S3_BUCKET", "tapgate-it"),
		AccessKeyID:      envOr("TAPGATE_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey:  envOr("TAPGATE_TEST_S3_SECRET_KEY", "miniostorage"),
		UseSSL:           false,
		Prefix:           "integration-tests",
		AutoCreateBucket: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	store, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	table := result.Table{
		Columns: []result.FieldDescriptor{
			{Name: "object_id", Datatype: result.TypeInteger},
			{Name: "ra", Datatype: result.TypeFloat},
		},
		Rows: [][]any{
			{int64(1), 10.5},
			{int64(2), 271.25},
		},
	}
	payload, err := stage.EncodeTable(table)
	if err != nil {
		t.Fatalf("stage.EncodeTable() error = %v", err)
	}

	submittedAt := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	key, err := storage.BuildResultPath("job-it-roundtrip", submittedAt)
	if err != nil {
		t.Fatalf("storage.BuildResultPath() error = %v", err)
	}

	if _, err := store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	stat, err := store.Stat(ctx, key)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if stat.Size != int64(len(payload)) {
		t.Fatalf("Stat().Size = %d, want %d", stat.Size, len(payload))
	}

	reader, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	staged, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("reader.Close() error = %v", err)
	}

	decoded, err := stage.DecodeTable(staged)
	if err != nil {
		t.Fatalf("stage.DecodeTable() error = %v", err)
	}
	if len(decoded.Rows) != len(table.Rows) || len(decoded.Columns) != len(table.Columns) {
		t.Fatalf("decoded table shape = %dx%d, want %dx%d",
			len(decoded.Rows), len(decoded.Columns), len(table.Rows), len(table.Columns))
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// A second sweep over the same key must be a no-op.
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() of missing object error = %v", err)
	}
	if _, err := store.Stat(ctx, key); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() after delete error = %v, want ErrObjectNotFound", err)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
