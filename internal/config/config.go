// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/hashicorp/go-multierror"
)

// Supported chat providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config holds all application configuration.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	FrontendURL     string        `env:"FRONTEND_URL"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DBPath          string        `env:"DB_PATH" envDefault:"./data/shikshaq.db"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	GRPCHealthAddr  string        `env:"GRPC_HEALTH_ADDR"`

	Chat      ChatConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
}

// ChatConfig controls the chat proxy pipeline.
type ChatConfig struct {
	Provider string `env:"CHAT_PROVIDER" envDefault:"gemini"`
	// GeminiAPIKey is the server-side credential and wins over GeminiClientAPIKey.
	GeminiAPIKey       string        `env:"GEMINI_API_KEY"`
	GeminiClientAPIKey string        `env:"VITE_GEMINI_API_KEY"`
	GeminiBaseURL      string        `env:"GEMINI_BASE_URL"`
	OpenAIAPIKey       string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string        `env:"OPENAI_BASE_URL"`
	Models             []string      `env:"CHAT_MODELS" envDefault:"gemini-2.5-flash,gemini-2.0-flash,gemini-2.5-pro" envSeparator:","`
	AttemptTimeout     time.Duration `env:"CHAT_ATTEMPT_TIMEOUT" envDefault:"30s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_BYTES" envDefault:"1048576"`
}

// RateLimitConfig controls per-client throttling of the chat routes.
type RateLimitConfig struct {
	RequestsPerWindow int           `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`
	WindowDuration    time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// AuditConfig controls the persisted chat audit trail.
type AuditConfig struct {
	Enabled   bool          `env:"AUDIT_ENABLED" envDefault:"true"`
	QueueSize int           `env:"AUDIT_QUEUE_SIZE" envDefault:"256"`
	Retention time.Duration `env:"AUDIT_RETENTION" envDefault:"720h"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.Chat.Provider = strings.ToLower(strings.TrimSpace(c.Chat.Provider))
	c.Chat.Models = trimAll(c.Chat.Models)
	c.AllowedOrigins = trimAll(c.AllowedOrigins)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that all required configuration fields are set.
// A missing provider credential is not a validation error: the chat endpoint
// reports it per request so the rest of the site keeps serving.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Port == "" {
		result = multierror.Append(result, errors.New("PORT cannot be empty"))
	}
	if c.DBPath == "" {
		result = multierror.Append(result, errors.New("DB_PATH cannot be empty"))
	}
	if c.Chat.Provider != ProviderGemini && c.Chat.Provider != ProviderOpenAI {
		result = multierror.Append(result, fmt.Errorf("CHAT_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.Chat.Provider))
	}
	if c.Chat.AttemptTimeout <= 0 {
		result = multierror.Append(result, errors.New("CHAT_ATTEMPT_TIMEOUT must be > 0"))
	}
	if c.Chat.MaxRequestBodySize <= 0 {
		result = multierror.Append(result, errors.New("MAX_REQUEST_BODY_BYTES must be > 0"))
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		result = multierror.Append(result, errors.New("RATE_LIMIT_REQUESTS must be > 0"))
	}
	if c.RateLimit.WindowDuration <= 0 {
		result = multierror.Append(result, errors.New("RATE_LIMIT_WINDOW must be > 0"))
	}
	if c.Audit.QueueSize <= 0 {
		result = multierror.Append(result, errors.New("AUDIT_QUEUE_SIZE must be > 0"))
	}
	if c.Audit.Retention <= 0 {
		result = multierror.Append(result, errors.New("AUDIT_RETENTION must be > 0"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// APIKey returns the credential for the configured provider, or "" when none is set.
func (c *Config) APIKey() string {
	if c.Chat.Provider == ProviderOpenAI {
		return strings.TrimSpace(c.Chat.OpenAIAPIKey)
	}
	if key := strings.TrimSpace(c.Chat.GeminiAPIKey); key != "" {
		return key
	}
	return strings.TrimSpace(c.Chat.GeminiClientAPIKey)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not a valid level", s)
	}
	return level, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}
