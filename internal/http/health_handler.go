package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler answers GET /healthz by running every check under timeout.
type HealthHandler struct {
	checks    map[string]HealthCheck
	timeout   time.Duration
	responder responder
}

// NewHealthHandler returns a handler over checks keyed by dependency name.
func NewHealthHandler(checks map[string]HealthCheck, timeout time.Duration, logger *slog.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout, responder: newResponder(logger, 0)}
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	report := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			report.Status = "degraded"
			report.Checks[name] = err.Error()
			h.responder.loggerFor(r.Context()).WarnContext(r.Context(), "health check failed", "check", name, "error", err)
			continue
		}
		report.Checks[name] = "ok"
	}
	h.responder.writeJSON(r.Context(), w, status, report)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
