// Package httpapi exposes datasets, dashboards and the live ingest feed over
// HTTP.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/tally/internal/auth"
	"github.com/roach88/tally/internal/dashboard"
	"github.com/roach88/tally/internal/engine"
	"github.com/roach88/tally/internal/store"
)

// Default and maximum SVG sizes in pixels.
const (
	DefaultSVGWidth  = 800
	DefaultSVGHeight = 400
	MaxSVGSize       = 4000
)

// Deps are the services the API is built on.
type Deps struct {
	Store      *store.Store
	Engine     *engine.Engine
	Dashboards *dashboard.Registry
	// Auth gates ingest endpoints. Nil disables authentication.
	Auth *auth.Authenticator
	// MaxBodyBytes caps request bodies on ingest endpoints.
	MaxBodyBytes int64
}

type api struct {
	Deps
	logger *slog.Logger
}

// Register attaches API routes to the provided mux.
func Register(mux *http.ServeMux, logger *slog.Logger, deps Deps) {
	a := &api{Deps: deps, logger: logger}

	mux.HandleFunc("GET /v1/ping", a.handlePing)

	mux.HandleFunc("GET /v1/datasets", a.handleDatasetList)
	mux.HandleFunc("GET /v1/datasets/{dataset}", a.handleDatasetGet)
	mux.Handle("POST /v1/datasets/{dataset}/records", a.requireKey(http.HandlerFunc(a.handleRecordsIngest)))
	mux.Handle("POST /v1/datasets/{dataset}/import", a.requireKey(http.HandlerFunc(a.handleCSVImport)))
	mux.HandleFunc("GET /v1/datasets/{dataset}/export", a.handleExport)

	mux.HandleFunc("GET /v1/dashboards", a.handleDashboardList)
	mux.HandleFunc("GET /v1/dashboards/{name}", a.handleDashboardGet)
	mux.HandleFunc("GET /v1/dashboards/{name}/panels/{panel}", a.handlePanel)

	mux.HandleFunc("GET /v1/live", a.handleLive)
}

func (a *api) handlePing(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]any{
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"server":  "tally",
		"version": "v1",
	}
	if err := a.Store.Ping(r.Context()); err != nil {
		a.logger.Error("database ping failed", "err", err)
		status = http.StatusServiceUnavailable
		resp["status"] = "degraded"
	}
	a.respondJSON(w, status, resp)
}

func (a *api) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode response", "err", err)
	}
}
