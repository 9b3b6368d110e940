package api

import (
	"net/http"

	"slurmjobs/internal/health"
	"slurmjobs/internal/job"
	"slurmjobs/internal/observability"
	"slurmjobs/internal/watch"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Controller    *job.Controller
	Watcher       *watch.Watcher
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Controller, cfg.Watcher, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health check endpoints (liveness/readiness probes) - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	// Job endpoints - auth required
	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("GET /v1/jobs/{name}", authMiddleware(http.HandlerFunc(handler.GetStatus)))
	mux.Handle("GET /v1/jobs/{name}/output", authMiddleware(http.HandlerFunc(handler.GetOutput)))
	mux.Handle("DELETE /v1/jobs/{name}", authMiddleware(http.HandlerFunc(handler.CancelJob)))
	mux.Handle("DELETE /v1/jobs/{name}/workspace", authMiddleware(http.HandlerFunc(handler.CleanupWorkspace)))
	mux.Handle("POST /v1/jobs/{name}/watch", authMiddleware(http.HandlerFunc(handler.WatchJob)))

	// Apply middleware chain (order matters: outermost first)
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RequestIDMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
