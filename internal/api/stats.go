package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shikshaq/shikshaq-chat/internal/domain"
	"github.com/shikshaq/shikshaq-chat/internal/identity"
)

const defaultStatsWindow = 24 * time.Hour

// StatsReader aggregates the chat audit trail. store.Repository satisfies it.
type StatsReader interface {
	ExchangeStats(ctx context.Context, since time.Time) (*domain.ExchangeStats, error)
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)
}

// StatsHandler reports aggregate chat outcomes.
type StatsHandler struct {
	repo StatsReader
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(repo StatsReader) *StatsHandler {
	return &StatsHandler{repo: repo}
}

// RegisterRoutes registers the stats route.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/stats", h.Stats)
}

// Stats handles GET /api/stats?since=<duration>. When the request carries a
// visitor cookie, the caller's own visitor record is included.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	window := defaultStatsWindow
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			Error(w, http.StatusBadRequest, "since must be a positive duration")
			return
		}
		window = d
	}

	since := time.Now().Add(-window)
	stats, err := h.repo.ExchangeStats(r.Context(), since)
	if err != nil {
		slog.Error("Failed to aggregate exchanges", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	resp := map[string]interface{}{
		"since": since.UTC().Format(time.RFC3339),
		"stats": stats,
	}

	if visitorID := identity.VisitorIDFromRequest(r); visitorID != "" {
		visitor, err := h.repo.GetVisitor(r.Context(), visitorID)
		if err != nil {
			slog.Warn("Failed to load visitor for stats", "visitor_id", visitorID, "error", err)
		} else if visitor != nil {
			resp["visitor"] = visitor
		}
	}

	JSON(w, http.StatusOK, resp)
}
