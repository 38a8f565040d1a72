package api

import (
	"encoding/json"
	"net/http"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/render"
	"github.com/tapgate/tapgate/internal/result"
)

// ErrorMapper normalizes a sync execution failure into the standard
// error-kind shape before rendering.
type ErrorMapper func(err error) *driver.ExecError

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeTable(w http.ResponseWriter, r *http.Request, table result.Table) {
	mediaType := render.Negotiate(r.Header.Get("Accept"))
	body, contentType, err := render.Result(table, mediaType)
	if err != nil {
		writeErrorEnvelope(w, r, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeErrorEnvelope(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	mediaType := render.Negotiate(r.Header.Get("Accept"))
	body, contentType := render.Error(kind, message, mediaType)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
