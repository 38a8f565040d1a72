package uws

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/jobstore"
)

type fakeDriver struct {
	submitted []string
	statuses  map[string]driver.JobStatus
	aborted   []string
}

func (f *fakeDriver) Submit(_ context.Context, query, _ string) (string, error) {
	id := fmt.Sprintf("job-%d", len(f.submitted)+1)
	f.submitted = append(f.submitted, query)
	return id, nil
}

func (f *fakeDriver) Job(_ context.Context, jobID string) (driver.JobStatus, error) {
	status, ok := f.statuses[jobID]
	if !ok {
		return driver.JobStatus{}, driver.ErrUnknownJob
	}
	return status, nil
}

func (f *fakeDriver) List(context.Context, string) ([]string, error) {
	return nil, nil
}

func (f *fakeDriver) Abort(_ context.Context, jobID string) error {
	f.aborted = append(f.aborted, jobID)
	return nil
}

type fakeStore struct {
	jobs map[string]jobstore.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]jobstore.Job)}
}

func (s *fakeStore) HealthCheck(context.Context) error { return nil }

func (s *fakeStore) Create(_ context.Context, job jobstore.Job) (jobstore.Job, error) {
	if _, ok := s.jobs[job.JobID]; ok {
		return jobstore.Job{}, jobstore.ErrDuplicate
	}
	job.CreateTime = time.Now()
	s.jobs[job.JobID] = job
	return job, nil
}

func (s *fakeStore) Find(_ context.Context, jobID string) (jobstore.Job, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return jobstore.Job{}, jobstore.ErrNotFound
	}
	return job, nil
}

func (s *fakeStore) List(_ context.Context, userID string) ([]jobstore.Job, error) {
	var out []jobstore.Job
	for _, job := range s.jobs {
		if job.UserID != nil && *job.UserID == userID {
			out = append(out, job)
		}
	}
	return out, nil
}

func (s *fakeStore) ListOlderThan(context.Context, time.Time) ([]jobstore.Job, error) {
	return nil, nil
}

func (s *fakeStore) DeleteOlderThan(context.Context, time.Time) (int, error) {
	return 0, nil
}

func newManager(t *testing.T, d driver.Driver) (*Manager, *fakeStore) {
	t.Helper()
	registry := driver.NewRegistry()
	if err := registry.Register("interactive", d); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	store := newFakeStore()
	return &Manager{Registry: registry, Store: store, DefaultDriver: "interactive"}, store
}

func TestSubmitAsyncRegistersJob(t *testing.T) {
	d := &fakeDriver{statuses: map[string]driver.JobStatus{}}
	m, store := newManager(t, d)

	jobID, err := m.SubmitAsync(context.Background(), "SELECT 1", "user-a")
	if err != nil {
		t.Fatalf("SubmitAsync() error = %v", err)
	}

	record, ok := store.jobs[jobID]
	if !ok {
		t.Fatalf("job %q not registered", jobID)
	}
	if record.DriverName != "interactive" {
		t.Fatalf("DriverName = %q", record.DriverName)
	}
	if record.Status != string(driver.StatePending) {
		t.Fatalf("Status = %q", record.Status)
	}
	if record.UserID == nil || *record.UserID != "user-a" {
		t.Fatalf("UserID = %v", record.UserID)
	}
}

func TestSubmitAsyncAnonymousHasNilUser(t *testing.T) {
	d := &fakeDriver{statuses: map[string]driver.JobStatus{}}
	m, store := newManager(t, d)

	jobID, err := m.SubmitAsync(context.Background(), "SELECT 1", "")
	if err != nil {
		t.Fatalf("SubmitAsync() error = %v", err)
	}
	if store.jobs[jobID].UserID != nil {
		t.Fatalf("UserID = %v, want nil", store.jobs[jobID].UserID)
	}
}

func TestPollRoutesToOwningDriver(t *testing.T) {
	d := &fakeDriver{statuses: map[string]driver.JobStatus{
		"job-1": {JobID: "job-1", State: driver.StateExecuting},
	}}
	m, _ := newManager(t, d)

	if _, err := m.SubmitAsync(context.Background(), "SELECT 1", "user-a"); err != nil {
		t.Fatalf("SubmitAsync() error = %v", err)
	}

	status, err := m.Poll(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if status.State != driver.StateExecuting {
		t.Fatalf("state = %s", status.State)
	}
}

func TestPollUnknownJob(t *testing.T) {
	m, _ := newManager(t, &fakeDriver{statuses: map[string]driver.JobStatus{}})
	_, err := m.Poll(context.Background(), "never-issued")
	if !errors.Is(err, jobstore.ErrNotFound) {
		t.Fatalf("Poll() error = %v, want jobstore.ErrNotFound", err)
	}
}

func TestPollUnknownDriverIsDistinct(t *testing.T) {
	m, store := newManager(t, &fakeDriver{statuses: map[string]driver.JobStatus{}})
	store.jobs["job-x"] = jobstore.Job{JobID: "job-x", DriverName: "retired"}

	_, err := m.Poll(context.Background(), "job-x")
	if !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("Poll() error = %v, want ErrUnknownDriver", err)
	}
	if errors.Is(err, jobstore.ErrNotFound) {
		t.Fatal("unknown driver must not look like an unknown job")
	}
}

func TestAbortRequiresCapability(t *testing.T) {
	d := &fakeDriver{statuses: map[string]driver.JobStatus{}}
	m, _ := newManager(t, d)

	jobID, err := m.SubmitAsync(context.Background(), "SELECT 1", "user-a")
	if err != nil {
		t.Fatalf("SubmitAsync() error = %v", err)
	}
	if err := m.Abort(context.Background(), jobID); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if len(d.aborted) != 1 || d.aborted[0] != jobID {
		t.Fatalf("aborted = %v", d.aborted)
	}
}
