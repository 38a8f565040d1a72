// Package api exposes the gateway's HTTP surface: the synchronous query
// endpoint, the asynchronous submit/poll pair, the capability banner, and
// the operational health/ready/metrics trio.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tapgate/tapgate/internal/config"
	"github.com/tapgate/tapgate/internal/observability"
	"github.com/tapgate/tapgate/internal/principal"
	"github.com/tapgate/tapgate/internal/render"
	"github.com/tapgate/tapgate/internal/result"
)

type ReadinessCheck func(ctx context.Context) error

// SyncExecutor is the synchronous execution path. The interactive driver
// satisfies it directly.
type SyncExecutor interface {
	Execute(ctx context.Context, query string) (result.Table, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Sync              SyncExecutor
	MapSyncError      ErrorMapper
	Jobs              JobManager
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		handleBanner(cfg, w, r)
	})
	mux.HandleFunc("POST /sync", func(w http.ResponseWriter, r *http.Request) {
		handleSync(deps, w, r)
	})
	mux.HandleFunc("POST /async", func(w http.ResponseWriter, r *http.Request) {
		handleAsyncSubmit(cfg, deps, w, r)
	})
	mux.HandleFunc("GET /async/{job}", func(w http.ResponseWriter, r *http.Request) {
		handleAsyncPoll(deps, w, r)
	})
	mux.HandleFunc("GET /async/{job}/{$}", func(w http.ResponseWriter, r *http.Request) {
		handleAsyncPoll(deps, w, r)
	})
	mux.HandleFunc("DELETE /async/{job}", func(w http.ResponseWriter, r *http.Request) {
		handleAsyncAbort(deps, w, r)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "reason": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
		principal.Middleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares,
			observability.LoggingMiddleware(deps.Logger),
			observability.RecoveryMiddleware(deps.Logger),
		)
	}
	return chain(mux, middlewares...)
}

func handleBanner(cfg config.Config, w http.ResponseWriter, r *http.Request) {
	paths := []string{"/sync", "/async", "/health", "/ready", "/metrics"}

	if render.Negotiate(r.Header.Get("Accept")) == render.MediaHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(render.Banner(cfg.Service.Name, paths))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": cfg.Service.Name,
		"paths":   paths,
	})
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
