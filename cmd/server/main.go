// ShikshAq - knowledge-grounded chat proxy server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shikshaq/shikshaq-chat/internal/api"
	"github.com/shikshaq/shikshaq-chat/internal/audit"
	"github.com/shikshaq/shikshaq-chat/internal/chat"
	"github.com/shikshaq/shikshaq-chat/internal/config"
	"github.com/shikshaq/shikshaq-chat/internal/health"
	"github.com/shikshaq/shikshaq-chat/internal/knowledge"
	"github.com/shikshaq/shikshaq-chat/internal/middleware"
	"github.com/shikshaq/shikshaq-chat/internal/provider/gemini"
	"github.com/shikshaq/shikshaq-chat/internal/provider/openai"
	"github.com/shikshaq/shikshaq-chat/internal/store"
	"github.com/shikshaq/shikshaq-chat/web"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"container", config.IsContainer(),
		"provider", cfg.Chat.Provider,
	)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "path", cfg.DBPath)

	kb, err := knowledge.Load()
	if err != nil {
		return fmt.Errorf("load knowledge base: %w", err)
	}
	slog.Info("Knowledge base loaded", "version", kb.Version, "faqs", len(kb.FAQs))

	apiKey := cfg.APIKey()
	if apiKey == "" {
		slog.Warn("No provider API key configured, chat requests will fail until one is set")
	}

	chatService := chat.NewService(chat.Options{
		APIKey:         apiKey,
		Models:         cfg.Chat.Models,
		AttemptTimeout: cfg.Chat.AttemptTimeout,
		SystemPrompt:   kb.SystemPrompt(),
	}, providerFactory(cfg), logger)

	recorder := audit.NewRecorder(audit.Config{
		Enabled:   cfg.Audit.Enabled,
		QueueSize: cfg.Audit.QueueSize,
	}, repo, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)

	// Initialize handlers.
	chatHandler := api.NewChatHandler(chatService, recorder, cfg.Chat.MaxRequestBodySize)
	wsHandler := api.NewWebSocketHandler(chatHandler, limiter, cfg.AllowedOrigins)
	faqHandler := api.NewFAQHandler(kb)
	healthHandler := api.NewHealthHandler(repo, chatService)
	statsHandler := api.NewStatsHandler(repo)

	r := newRouter(routerDeps{
		health:         healthHandler,
		faq:            faqHandler,
		stats:          statsHandler,
		chat:           chatHandler,
		ws:             wsHandler,
		visitors:       repo,
		limiter:        limiter,
		allowedOrigins: cfg.AllowedOrigins,
		isDev:          cfg.IsDevelopment(),
		static:         web.SPAHandler(),
	})

	// Chat latency is bounded by the per-attempt deadline, and /ws/chat
	// connections are long-lived, so there is no server WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		if err := recorder.Close(shutdownCtx); err != nil {
			slog.Warn("Audit queue not fully drained", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		limiter.RunEviction(gctx)
		return nil
	})

	if cfg.Audit.Enabled {
		g.Go(func() error {
			store.RunRetentionWorker(gctx, repo, cfg.Audit.Retention, 0)
			return nil
		})
	}

	if cfg.GRPCHealthAddr != "" {
		hs := health.NewServer(func(ctx context.Context) error {
			if !chatService.Configured() {
				return chat.ErrMissingCredential
			}
			return repo.Ping(ctx)
		}, 0, logger)
		g.Go(func() error {
			return hs.ListenAndServe(gctx, cfg.GRPCHealthAddr)
		})
	}

	return g.Wait()
}

func providerFactory(cfg *config.Config) chat.ClientFactory {
	if cfg.Chat.Provider == config.ProviderOpenAI {
		return openai.Factory(cfg.Chat.OpenAIBaseURL)
	}
	return gemini.Factory(cfg.Chat.GeminiBaseURL)
}
