// Package middleware provides HTTP middleware for the ShikshAq API.
package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns middleware that handles CORS headers for allowedOrigins.
// Credentials are only allowed when every origin is explicit; a "*" entry
// reflects any origin without credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	wildcard := len(allowedOrigins) == 0
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
			break
		}
	}

	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
	if wildcard {
		opts.AllowedOrigins = []string{"*"}
	}

	return cors.New(opts).Handler
}
