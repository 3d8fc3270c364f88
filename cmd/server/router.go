package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shikshaq/shikshaq-chat/internal/api"
	"github.com/shikshaq/shikshaq-chat/internal/identity"
	"github.com/shikshaq/shikshaq-chat/internal/middleware"
)

type routerDeps struct {
	health *api.HealthHandler
	faq    *api.FAQHandler
	stats  *api.StatsHandler
	chat   *api.ChatHandler
	ws     *api.WebSocketHandler

	visitors       identity.VisitorToucher
	limiter        *middleware.RateLimiter
	allowedOrigins []string
	isDev          bool
	static         http.Handler
}

func newRouter(d routerDeps) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(d.allowedOrigins))

	// Public routes. These never issue a visitor cookie or write to the store.
	d.health.RegisterRoutes(r)
	d.faq.RegisterRoutes(r)
	d.stats.RegisterRoutes(r)

	// Chat routes carry visitor identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(d.visitors, d.isDev))
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(d.limiter))
			d.chat.RegisterRoutes(r)
		})
		d.ws.RegisterRoutes(r)
	})

	// Serve embedded frontend (SPA catch-all).
	if d.static != nil {
		r.Handle("/*", d.static)
	}
	return r
}
