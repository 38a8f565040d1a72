package storage

import (
	"testing"
	"time"
)

func TestBuildResultPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 4, 5, 0, 0, time.FixedZone("x", -5*3600))
	key, err := BuildResultPath("0b7f9c2e-1a2b-4c3d-8e9f-001122334455", ts)
	if err != nil {
		t.Fatalf("BuildResultPath() error = %v", err)
	}
	want := "results/date=2026-02-19/job-0b7f9c2e-1a2b-4c3d-8e9f-001122334455.parquet"
	if key != want {
		t.Fatalf("BuildResultPath() = %q, want %q", key, want)
	}
}

func TestBuildResultPathRejectsInvalidJobID(t *testing.T) {
	if _, err := BuildResultPath("../oops", time.Now()); err == nil {
		t.Fatal("expected invalid job id error")
	}
}
