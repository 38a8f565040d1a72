package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/tapgate/tapgate/internal/observability"
	"github.com/tapgate/tapgate/internal/principal"
)

// queryFromRequest accepts the statement from an urlencoded form body or
// from the query string; the form value wins when both are present.
func queryFromRequest(r *http.Request) string {
	if err := r.ParseForm(); err != nil {
		return ""
	}
	return strings.TrimSpace(r.Form.Get("query"))
}

func handleSync(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	query := queryFromRequest(r)
	if query == "" {
		handleSyncList(deps, w, r)
		return
	}

	if deps.Sync == nil {
		writeErrorEnvelope(w, r, http.StatusNotImplemented, "UsageError", "synchronous execution is not configured")
		return
	}

	start := time.Now()
	table, err := deps.Sync.Execute(r.Context(), query)
	if err != nil {
		observability.ObserveSyncQuery("error", time.Since(start))
		execErr := deps.MapSyncError(err)
		writeErrorEnvelope(w, r, http.StatusInternalServerError, execErr.Kind, execErr.Message)
		return
	}
	observability.ObserveSyncQuery("ok", time.Since(start))
	writeTable(w, r, table)
}

// handleSyncList serves a bare POST /sync with no statement: the caller's
// registered jobs. Listing requires the job manager; without it the path
// fails explicitly rather than answering with an empty success.
func handleSyncList(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Jobs == nil {
		writeErrorEnvelope(w, r, http.StatusNotImplemented, "UsageError", "job listing is not available")
		return
	}

	userID := principal.UserIDFromContext(r.Context())
	jobs, err := deps.Jobs.ListJobs(r.Context(), userID)
	if err != nil {
		writeErrorEnvelope(w, r, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}

	entries := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		entries = append(entries, map[string]any{
			"jobId":      job.JobID,
			"driver":     job.DriverName,
			"query":      job.QueryText,
			"status":     job.Status,
			"createTime": job.CreateTime.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"jobs": entries}})
}
