package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tapgate/tapgate/internal/config"
	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/jobstore"
	"github.com/tapgate/tapgate/internal/principal"
	"github.com/tapgate/tapgate/internal/uws"
)

// JobManager is the async lifecycle surface the handlers need. The uws
// manager satisfies it.
type JobManager interface {
	SubmitAsync(ctx context.Context, query, userID string) (string, error)
	Poll(ctx context.Context, jobID string) (driver.JobStatus, error)
	Abort(ctx context.Context, jobID string) error
	ListJobs(ctx context.Context, userID string) ([]jobstore.Job, error)
}

func handleAsyncSubmit(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Jobs == nil {
		writeErrorEnvelope(w, r, http.StatusNotImplemented, "UsageError", "asynchronous execution is not configured")
		return
	}

	query := queryFromRequest(r)
	if query == "" {
		writeErrorEnvelope(w, r, http.StatusBadRequest, "UsageError", "query is required")
		return
	}

	userID := principal.UserIDFromContext(r.Context())
	jobID, err := deps.Jobs.SubmitAsync(r.Context(), query, userID)
	if err != nil {
		writeErrorEnvelope(w, r, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}

	pollURL := pollURLFor(cfg, jobID)
	w.Header().Set("Location", pollURL)
	writeJSON(w, http.StatusCreated, map[string]any{
		"result": map[string]any{"jobId": jobID, "url": pollURL},
	})
}

func handleAsyncPoll(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Jobs == nil {
		writeErrorEnvelope(w, r, http.StatusNotImplemented, "UsageError", "asynchronous execution is not configured")
		return
	}

	jobID := r.PathValue("job")
	status, err := deps.Jobs.Poll(r.Context(), jobID)
	if err != nil {
		writePollError(w, r, jobID, err)
		return
	}

	switch status.State {
	case driver.StateCompleted:
		table, err := status.Result(r.Context())
		if err != nil {
			writeErrorEnvelope(w, r, http.StatusInternalServerError, "InternalError", err.Error())
			return
		}
		writeTable(w, r, table)
	case driver.StateError:
		writeErrorEnvelope(w, r, http.StatusInternalServerError, status.Error.Kind, status.Error.Message)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{"jobId": jobID, "phase": string(status.State)},
		})
	}
}

func handleAsyncAbort(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Jobs == nil {
		writeErrorEnvelope(w, r, http.StatusNotImplemented, "UsageError", "asynchronous execution is not configured")
		return
	}

	jobID := r.PathValue("job")
	if err := deps.Jobs.Abort(r.Context(), jobID); err != nil {
		if errors.Is(err, driver.ErrNotImplemented) {
			writeErrorEnvelope(w, r, http.StatusNotImplemented, "UsageError", "job's driver does not support abort")
			return
		}
		writePollError(w, r, jobID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": map[string]any{"jobId": jobID, "phase": string(driver.StateAborted)},
	})
}

func writePollError(w http.ResponseWriter, r *http.Request, jobID string, err error) {
	switch {
	case errors.Is(err, jobstore.ErrNotFound), errors.Is(err, driver.ErrUnknownJob):
		writeErrorEnvelope(w, r, http.StatusNotFound, "UsageError", "unknown job "+jobID)
	case errors.Is(err, uws.ErrUnknownDriver):
		writeErrorEnvelope(w, r, http.StatusInternalServerError, "UnknownDriverError", err.Error())
	default:
		writeErrorEnvelope(w, r, http.StatusInternalServerError, "InternalError", err.Error())
	}
}

func pollURLFor(cfg config.Config, jobID string) string {
	base := strings.TrimSuffix(cfg.HTTP.ExternalBaseURL, "/")
	return base + "/async/" + jobID + "/"
}
