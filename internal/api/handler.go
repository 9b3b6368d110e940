// Package api provides the HTTP API handlers and routing for the jobs service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"slurmjobs/internal/apperrors"
	"slurmjobs/internal/health"
	"slurmjobs/internal/job"
	"slurmjobs/internal/watch"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// Handler contains HTTP handlers for the jobs API
type Handler struct {
	controller *job.Controller
	watcher    *watch.Watcher
	health     *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(controller *job.Controller, watcher *watch.Watcher, healthChecker *health.Checker) *Handler {
	return &Handler{
		controller: controller,
		watcher:    watcher,
		health:     healthChecker,
	}
}

// statusResponse is the body for GET /v1/jobs/{name}.
type statusResponse struct {
	Name     string   `json:"name"`
	Terminal bool     `json:"terminal"`
	Rows     []string `json:"rows,omitempty"`
}

// GetStatus handles GET /v1/jobs/{name}
// Query params: nodes (optional, default 1)
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobFromRequest(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	state, err := h.controller.Status(r.Context(), j)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statusResponse{
		Name:     j.Name,
		Terminal: state.Terminal(),
		Rows:     state.Rows,
	})
}

// GetOutput handles GET /v1/jobs/{name}/output
// Query params: nodes (required for multi-node jobs, default 1)
func (h *Handler) GetOutput(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobFromRequest(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.controller.Output(j))
}

// CancelJob handles DELETE /v1/jobs/{name}
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobFromRequest(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.controller.Cancel(r.Context(), j); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CleanupWorkspace handles DELETE /v1/jobs/{name}/workspace
// Query params: nodes (optional), wait (optional bool; wait for the job to
// finish before removing its working directory)
func (h *Handler) CleanupWorkspace(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobFromRequest(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	wait := false
	if raw := r.URL.Query().Get("wait"); raw != "" {
		wait, err = strconv.ParseBool(raw)
		if err != nil {
			h.handleError(w, r, apperrors.Validation("wait", "must be a boolean"))
			return
		}
	}

	if err := h.controller.Cleanup(r.Context(), j, wait); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// watchRequest is the body for POST /v1/jobs/{name}/watch.
type watchRequest struct {
	CallbackURL string `json:"callback_url"`
	SigningKey  string `json:"signing_key,omitempty"`
}

// WatchJob handles POST /v1/jobs/{name}/watch - registers a background watch
// that POSTs a CloudEvent to callback_url once the job is terminal.
func (h *Handler) WatchJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobFromRequest(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	// Limit request body size to prevent memory exhaustion
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.watcher.Register(watch.Request{
		Job:         j,
		CallbackURL: req.CallbackURL,
		SigningKey:  req.SigningKey,
	}); err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "watching"})
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	response := h.health.Liveness(r.Context())
	h.writeJSON(w, http.StatusOK, response)
}

// Readyz handles GET /readyz - readiness probe.
// Returns 200 if the service is ready to accept traffic.
// Returns 503 if the scheduler is unavailable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// jobFromRequest extracts and validates the job identity from the request
// path and query string.
func (h *Handler) jobFromRequest(r *http.Request) (job.Job, error) {
	name := r.PathValue("name")

	nodes := 1
	if raw := r.URL.Query().Get("nodes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return job.Job{}, apperrors.Validation("nodes", "must be an integer")
		}
		nodes = n
	}

	return job.New(name, nodes)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError handles errors from the controller with appropriate HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
