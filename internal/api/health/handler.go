package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"costguardian/internal/workers"
	"costguardian/pkg/logger"
)

// Checker probes one dependency
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

// Health implements Checker
func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// WorkerReporter exposes background worker state
type WorkerReporter interface {
	Health() map[string]workers.WorkerHealth
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]Checker
	workers     WorkerReporter
	startTime   time.Time
	serviceName string
	version     string
	now         func() time.Time
}

// New creates a health handler. Every named checker must pass for readiness.
func New(log *logger.Logger, checks map[string]Checker, workerState WorkerReporter, serviceName, version string) *Handler {
	return &Handler{
		log:         log.With("component", "health"),
		checks:      checks,
		workers:     workerState,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
		now:         time.Now,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                          `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                          `json:"service"`
	Version   string                          `json:"version"`
	Uptime    string                          `json:"uptime"`
	Timestamp string                          `json:"timestamp"`
	Checks    map[string]ComponentHealth      `json:"checks"`
	Workers   map[string]workers.WorkerHealth `json:"workers,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if the process is serving
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness returns 503 unless every dependency answers
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)
	status := h.status(checks)

	code := http.StatusOK
	if healthy != len(checks) {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", checks)
	}
	writeJSON(w, code, status)
}

// HandleHealth returns detailed status including background workers.
// A partial outage is reported as degraded with 200.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)
	status := h.status(checks)
	if h.workers != nil {
		status.Workers = h.workers.Health()
	}

	code := http.StatusOK
	switch {
	case len(checks) > 0 && healthy == 0:
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case healthy < len(checks):
		status.Status = "degraded"
	}
	writeJSON(w, code, status)
}

func (h *Handler) runChecks(ctx context.Context) (map[string]ComponentHealth, int) {
	results := make(map[string]ComponentHealth, len(h.checks))
	healthy := 0
	for name, c := range h.checks {
		start := h.now()
		err := c.Health(ctx)
		ch := ComponentHealth{
			Status:       "healthy",
			ResponseTime: h.now().Sub(start).String(),
		}
		if err != nil {
			ch.Status = "unhealthy"
			ch.Error = err.Error()
		} else {
			healthy++
		}
		results[name] = ch
	}
	return results, healthy
}

func (h *Handler) status(checks map[string]ComponentHealth) HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    h.now().Sub(h.startTime).Round(time.Second).String(),
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
