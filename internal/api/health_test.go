package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shikshaq/shikshaq-chat/internal/chat"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type staticChat struct {
	configured bool
}

func (s staticChat) Answer(context.Context, chat.Request) (*chat.Result, error) {
	return nil, errors.New("not used")
}
func (s staticChat) Configured() bool { return s.configured }
func (s staticChat) Models() []string { return []string{"fast-model", "pro-model"} }

func TestHealth(t *testing.T) {
	tests := []struct {
		name         string
		pingErr      error
		configured   bool
		wantCode     int
		wantStatus   string
		wantProvider string
	}{
		{"healthy", nil, true, http.StatusOK, "healthy", "configured"},
		{"missing key", nil, false, http.StatusOK, "healthy", "missing_credential"},
		{"db down", errors.New("closed"), true, http.StatusServiceUnavailable, "degraded", "configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(fakePinger{err: tt.pingErr}, staticChat{configured: tt.configured}).RegisterRoutes(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if w.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, w.Code)
			}
			var got struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
				Models []string          `json:"models"`
			}
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("Expected status %q, got %q", tt.wantStatus, got.Status)
			}
			if got.Checks["provider"] != tt.wantProvider {
				t.Errorf("Expected provider %q, got %q", tt.wantProvider, got.Checks["provider"])
			}
			if len(got.Models) != 2 {
				t.Errorf("Expected models in response, got %v", got.Models)
			}
		})
	}
}
