package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shikshaq/shikshaq-chat/internal/knowledge"
)

// Options configures a Service.
type Options struct {
	// APIKey is the provider credential; empty means the service is misconfigured.
	APIKey         string
	Models         []string
	AttemptTimeout time.Duration
	SystemPrompt   string
}

// Service answers chat requests from a remote generative model.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	opts      Options
	newClient ClientFactory
	logger    *slog.Logger
}

// NewService creates a chat service.
func NewService(opts Options, newClient ClientFactory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	opts.Models = append([]string(nil), opts.Models...)
	return &Service{
		opts:      opts,
		newClient: newClient,
		logger:    logger,
	}
}

// Configured reports whether a provider credential is present.
func (s *Service) Configured() bool {
	return s.opts.APIKey != ""
}

// Models returns the candidate list in priority order.
func (s *Service) Models() []string {
	return append([]string(nil), s.opts.Models...)
}

// Answer turns a user message into a grounded answer, falling back through the
// candidate models on timeout or error.
func (s *Service) Answer(ctx context.Context, req Request) (*Result, error) {
	if s.opts.APIKey == "" {
		return nil, &Error{Kind: KindMisconfigured, Cause: ErrMissingCredential}
	}
	if req.Message == "" {
		return nil, &Error{Kind: KindInvalidInput, Cause: ErrMessageRequired}
	}
	if len(s.opts.Models) == 0 {
		return nil, &Error{Kind: KindMisconfigured, Cause: ErrNoCandidates}
	}

	client, err := s.newClient(ctx, s.opts.APIKey)
	if err != nil {
		return nil, &Error{Kind: KindAllProvidersFailed, Cause: fmt.Errorf("create provider client: %w", err)}
	}

	prompt := knowledge.BuildPrompt(s.opts.SystemPrompt, req.Message)
	policy := Policy{Candidates: s.opts.Models, Deadline: s.opts.AttemptTimeout}

	result, err := policy.Run(ctx, func(ctx context.Context, model string) (string, error) {
		return client.Model(model).Generate(ctx, prompt)
	}, s.trace)
	if err != nil {
		s.logger.Error("All chat candidates failed",
			"candidates", len(s.opts.Models),
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Chat answered",
		"model", result.Model,
		"attempts", len(result.Attempts),
		"history_turns", len(req.History),
		"response_length", len(result.Text),
	)
	return result, nil
}

func (s *Service) trace(a Attempt) {
	if a.Outcome == OutcomeSuccess {
		s.logger.Debug("Chat candidate succeeded", "model", a.Model, "elapsed", a.Elapsed)
		return
	}
	s.logger.Warn("Chat candidate failed",
		"model", a.Model,
		"outcome", a.Outcome,
		"elapsed", a.Elapsed,
		"error", a.Err,
	)
}
