// Package chat implements the knowledge-grounded chat proxy: prompt assembly,
// ordered model fallback with a per-attempt deadline, and the result envelope.
package chat

import (
	"context"
	"time"
)

// Turn is one prior message in the conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Request is a single chat request.
// History is part of the contract but is not used to build the prompt.
type Request struct {
	Message string
	History []Turn
}

// Outcome classifies a single generation attempt.
type Outcome string

const (
	// OutcomeSuccess means the candidate returned a completion.
	OutcomeSuccess Outcome = "success"
	// OutcomeTimeout means the candidate did not answer before its deadline.
	OutcomeTimeout Outcome = "timeout"
	// OutcomeError means the candidate returned an error.
	OutcomeError Outcome = "error"
)

// Attempt records one (request, candidate) generation call.
type Attempt struct {
	Model   string
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// Result is a successful chat answer.
type Result struct {
	Text     string
	Model    string
	Attempts []Attempt
}

// ClientFactory creates a provider handle for an API key.
type ClientFactory func(ctx context.Context, apiKey string) (Provider, error)

// Provider resolves named models on a generative completion backend.
type Provider interface {
	Model(name string) Model
}

// Model generates a completion for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
