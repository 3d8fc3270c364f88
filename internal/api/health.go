package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db   Pinger
	chat ChatService
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, svc ChatService) *HealthHandler {
	return &HealthHandler{db: db, chat: svc}
}

// RegisterRoutes registers the health check route.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.Health)
}

// Health returns the health status of the API and its dependencies.
// A missing provider credential is reported but does not degrade the service,
// since the rest of the site keeps working without it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
		"models": h.chat.Models(),
	}
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.chat.Configured() {
		checks["provider"] = "configured"
	} else {
		checks["provider"] = "missing_credential"
	}

	JSON(w, statusCode, status)
}
