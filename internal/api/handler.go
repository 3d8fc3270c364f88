// Package api provides HTTP handlers for the ShikshAq API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shikshaq/shikshaq-chat/internal/chat"
)

// ChatService answers chat requests. *chat.Service satisfies it.
type ChatService interface {
	Answer(ctx context.Context, req chat.Request) (*chat.Result, error)
	Configured() bool
	Models() []string
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(key string) bool
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
