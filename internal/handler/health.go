package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Iurilui616/APICHARLENO/internal/model"
)

// Pinger checks connectivity to a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps holds the backing services checked by the readiness probe.
type HealthDeps struct {
	Postgres Pinger
	Redis    Pinger
}

// HealthHandler serves liveness, readiness, and the public health endpoint.
type HealthHandler struct {
	logger *slog.Logger
	deps   HealthDeps
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(logger *slog.Logger, deps HealthDeps) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		deps:   deps,
	}
}

// Health handles GET /health - the public health check with envelope response.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := model.NewResponse("Service is healthy", map[string]any{
		"status": "healthy",
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeBody(w, resp)
}

// Healthz handles GET /healthz - liveness probe, no dependency checks.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Readyz handles GET /readyz - readiness probe checking Postgres and Redis.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if h.deps.Postgres != nil {
		if err := h.deps.Postgres.Ping(ctx); err != nil {
			h.logger.Error("readiness check failed",
				slog.String("dependency", "postgres"),
				slog.String("error", err.Error()),
			)
			checks["postgres"] = "unavailable"
			healthy = false
		} else {
			checks["postgres"] = "ok"
		}
	}

	if h.deps.Redis != nil {
		if err := h.deps.Redis.Ping(ctx); err != nil {
			h.logger.Error("readiness check failed",
				slog.String("dependency", "redis"),
				slog.String("error", err.Error()),
			)
			checks["redis"] = "unavailable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	state := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeBody(w, map[string]any{
		"status": state,
		"checks": checks,
	})
}

func writeBody(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}
