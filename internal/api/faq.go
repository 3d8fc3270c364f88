package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shikshaq/shikshaq-chat/internal/knowledge"
)

// FAQHandler serves the knowledge base to the front-end.
type FAQHandler struct {
	kb *knowledge.Base
}

// NewFAQHandler creates a FAQ handler.
func NewFAQHandler(kb *knowledge.Base) *FAQHandler {
	return &FAQHandler{kb: kb}
}

// RegisterRoutes registers the FAQ route.
func (h *FAQHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/faqs", h.List)
}

// List returns the FAQ entries and contact channels.
func (h *FAQHandler) List(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	JSON(w, http.StatusOK, h.kb)
}
