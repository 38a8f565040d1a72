package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tapgate/tapgate/internal/config"
	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/jobstore"
	"github.com/tapgate/tapgate/internal/result"
	"github.com/tapgate/tapgate/internal/uws"
)

type fakeSync struct {
	table result.Table
	err   error
}

func (f *fakeSync) Execute(context.Context, string) (result.Table, error) {
	if f.err != nil {
		return result.Table{}, f.err
	}
	return f.table, nil
}

type fakeJobs struct {
	nextID    int
	submitted map[string]string
	statuses  map[string]driver.JobStatus
	pollErr   error
	jobs      []jobstore.Job
	listErr   error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{submitted: map[string]string{}, statuses: map[string]driver.JobStatus{}}
}

func (f *fakeJobs) SubmitAsync(_ context.Context, query, userID string) (string, error) {
	f.nextID++
	id := fmt.Sprintf("job-%03d", f.nextID)
	f.submitted[id] = query + "|" + userID
	return id, nil
}

func (f *fakeJobs) Poll(_ context.Context, jobID string) (driver.JobStatus, error) {
	if f.pollErr != nil {
		return driver.JobStatus{}, f.pollErr
	}
	status, ok := f.statuses[jobID]
	if !ok {
		return driver.JobStatus{}, jobstore.ErrNotFound
	}
	return status, nil
}

func (f *fakeJobs) Abort(_ context.Context, jobID string) error {
	if _, ok := f.statuses[jobID]; !ok {
		return jobstore.ErrNotFound
	}
	return nil
}

func (f *fakeJobs) ListJobs(context.Context, string) ([]jobstore.Job, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.jobs, nil
}

func testConfig() config.Config {
	return config.Config{
		Profile: config.ProfileTest,
		Service: config.ServiceConfig{Name: "tapgate-api"},
		HTTP:    config.HTTPConfig{ExternalBaseURL: "http://tap.example.org"},
	}
}

func testHandler(deps Dependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if deps.MapSyncError == nil {
		deps.MapSyncError = func(err error) *driver.ExecError {
			return &driver.ExecError{Kind: "QueryExecutionError", Message: err.Error()}
		}
	}
	return NewHandler(testConfig(), deps)
}

func oneRowTable() result.Table {
	return result.Table{
		Columns: []result.FieldDescriptor{{Name: "x", Datatype: result.TypeInteger}},
		Rows:    [][]any{{int64(1)}},
	}
}

func postForm(h http.Handler, path, query string) *httptest.ResponseRecorder {
	form := url.Values{}
	if query != "" {
		form.Set("query", query)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body is not JSON: %v\n%s", err, rr.Body.String())
	}
	return payload
}

func TestBannerJSON(t *testing.T) {
	h := testHandler(Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["service"] != "tapgate-api" {
		t.Fatalf("service = %v", payload["service"])
	}
}

func TestBannerHTML(t *testing.T) {
	h := testHandler(Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "/sync") {
		t.Fatalf("banner missing paths: %s", rr.Body.String())
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("content type = %q", rr.Header().Get("Content-Type"))
	}
}

func TestSyncQueryReturnsEnvelope(t *testing.T) {
	h := testHandler(Dependencies{Sync: &fakeSync{table: oneRowTable()}})
	rr := postForm(h, "/sync", "SELECT 1 AS x")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	res, ok := payload["result"].(map[string]any)
	if !ok {
		t.Fatalf("missing result envelope: %v", payload)
	}
	if _, ok := res["table"]; !ok {
		t.Fatalf("missing table: %v", res)
	}
}

func TestSyncQueryFromQueryString(t *testing.T) {
	h := testHandler(Dependencies{Sync: &fakeSync{table: oneRowTable()}})
	req := httptest.NewRequest(http.MethodPost, "/sync?query=SELECT+1+AS+x", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestSyncQueryFailureRendersMappedKind(t *testing.T) {
	h := testHandler(Dependencies{Sync: &fakeSync{err: errors.New("Parser Error: syntax error at end of input")}})
	rr := postForm(h, "/sync", "SELEC")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["error"] != "QueryExecutionError" {
		t.Fatalf("error = %v", payload["error"])
	}
	if payload["message"] == "" {
		t.Fatal("message missing")
	}
}

func TestSyncWithoutQueryListsJobs(t *testing.T) {
	jobs := newFakeJobs()
	user := "user-a"
	jobs.jobs = []jobstore.Job{{
		JobID:      "job-001",
		DriverName: "interactive",
		UserID:     &user,
		QueryText:  "SELECT 1",
		Status:     "COMPLETED",
		CreateTime: time.Now(),
	}}
	h := testHandler(Dependencies{Jobs: jobs})

	rr := postForm(h, "/sync", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	res := payload["result"].(map[string]any)
	list, ok := res["jobs"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("jobs = %v", res["jobs"])
	}
}

func TestSyncWithoutQueryNoListingIs501(t *testing.T) {
	h := testHandler(Dependencies{Sync: &fakeSync{table: oneRowTable()}})
	rr := postForm(h, "/sync", "")

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["error"] != "UsageError" {
		t.Fatalf("error = %v", payload["error"])
	}
}

func TestAsyncSubmitReturnsLocationAndDistinctIDs(t *testing.T) {
	jobs := newFakeJobs()
	h := testHandler(Dependencies{Jobs: jobs})

	first := postForm(h, "/async", "SELECT 1")
	second := postForm(h, "/async", "SELECT 2")

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}

	firstPayload := decodeBody(t, first)["result"].(map[string]any)
	secondPayload := decodeBody(t, second)["result"].(map[string]any)
	if firstPayload["jobId"] == secondPayload["jobId"] {
		t.Fatalf("job ids must differ: %v", firstPayload["jobId"])
	}

	location := first.Header().Get("Location")
	wantURL := "http://tap.example.org/async/" + firstPayload["jobId"].(string) + "/"
	if location != wantURL {
		t.Fatalf("Location = %q, want %q", location, wantURL)
	}
	if firstPayload["url"] != wantURL {
		t.Fatalf("url = %v, want %q", firstPayload["url"], wantURL)
	}
}

func TestAsyncSubmitRequiresQuery(t *testing.T) {
	h := testHandler(Dependencies{Jobs: newFakeJobs()})
	rr := postForm(h, "/async", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAsyncPollPhases(t *testing.T) {
	jobs := newFakeJobs()
	jobs.statuses["job-001"] = driver.JobStatus{JobID: "job-001", State: driver.StateExecuting}
	table := oneRowTable()
	jobs.statuses["job-002"] = driver.JobStatus{
		JobID: "job-002",
		State: driver.StateCompleted,
		Result: func(context.Context) (result.Table, error) {
			return table, nil
		},
	}
	jobs.statuses["job-003"] = driver.JobStatus{
		JobID: "job-003",
		State: driver.StateError,
		Error: &driver.ExecError{Kind: "ParserError", Message: "syntax error"},
	}
	h := testHandler(Dependencies{Jobs: jobs})

	executing := httptest.NewRecorder()
	h.ServeHTTP(executing, httptest.NewRequest(http.MethodGet, "/async/job-001/", nil))
	if executing.Code != http.StatusOK {
		t.Fatalf("executing status = %d", executing.Code)
	}
	res := decodeBody(t, executing)["result"].(map[string]any)
	if res["phase"] != "EXECUTING" {
		t.Fatalf("phase = %v", res["phase"])
	}

	completed := httptest.NewRecorder()
	h.ServeHTTP(completed, httptest.NewRequest(http.MethodGet, "/async/job-002/", nil))
	if completed.Code != http.StatusOK {
		t.Fatalf("completed status = %d", completed.Code)
	}
	if _, ok := decodeBody(t, completed)["result"].(map[string]any)["table"]; !ok {
		t.Fatalf("completed poll missing table: %s", completed.Body.String())
	}

	failed := httptest.NewRecorder()
	h.ServeHTTP(failed, httptest.NewRequest(http.MethodGet, "/async/job-003/", nil))
	if failed.Code != http.StatusInternalServerError {
		t.Fatalf("failed status = %d", failed.Code)
	}
	if decodeBody(t, failed)["error"] != "ParserError" {
		t.Fatalf("error = %v", decodeBody(t, failed)["error"])
	}
}

func TestAsyncPollUnknownJobIs404(t *testing.T) {
	h := testHandler(Dependencies{Jobs: newFakeJobs()})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/async/never-issued/", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "UsageError" {
		t.Fatalf("error = %v", decodeBody(t, rr)["error"])
	}
}

func TestAsyncPollUnknownDriverIs500Distinct(t *testing.T) {
	jobs := newFakeJobs()
	jobs.pollErr = uws.ErrUnknownDriver
	h := testHandler(Dependencies{Jobs: jobs})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/async/job-001/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "UnknownDriverError" {
		t.Fatalf("error = %v", decodeBody(t, rr)["error"])
	}
}

func TestSyncNegotiatesVOTable(t *testing.T) {
	h := testHandler(Dependencies{Sync: &fakeSync{table: oneRowTable()}})

	form := url.Values{}
	form.Set("query", "SELECT 1 AS x")
	req := httptest.NewRequest(http.MethodPost, "/sync", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/x-votable+xml")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<VOTABLE") {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "application/x-votable+xml") {
		t.Fatalf("content type = %q", rr.Header().Get("Content-Type"))
	}
}

func TestHealthAndReady(t *testing.T) {
	h := testHandler(Dependencies{
		Readiness: func(context.Context) error { return nil },
	})

	health := httptest.NewRecorder()
	h.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("health status = %d", health.Code)
	}

	ready := httptest.NewRecorder()
	h.ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if ready.Code != http.StatusOK {
		t.Fatalf("ready status = %d", ready.Code)
	}
}

func TestReadyFailsWhenDependencyDown(t *testing.T) {
	h := testHandler(Dependencies{
		Readiness: func(context.Context) error { return errors.New("job store unreachable") },
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}
