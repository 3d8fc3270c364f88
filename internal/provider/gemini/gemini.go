// Package gemini adapts the Google Gemini API to the chat provider contract.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shikshaq/shikshaq-chat/internal/chat"
	"google.golang.org/genai"
)

// sharedHTTPClient pools connections across the per-request clients.
// Deadlines come from the request context, so there is no client timeout.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// Client is a Gemini API handle bound to one API key.
type Client struct {
	models *genai.Models
}

// Factory returns a chat.ClientFactory targeting baseURL, or the public
// endpoint when baseURL is empty.
func Factory(baseURL string) chat.ClientFactory {
	return func(ctx context.Context, apiKey string) (chat.Provider, error) {
		return newClient(ctx, apiKey, baseURL)
	}
}

func newClient(ctx context.Context, apiKey, baseURL string) (chat.Provider, error) {
	if apiKey == "" {
		return nil, chat.ErrMissingCredential
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: sharedHTTPClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{models: c.Models}, nil
}

// Model returns a handle for the named model.
func (c *Client) Model(name string) chat.Model {
	return &model{models: c.models, name: name}
}

type model struct {
	models *genai.Models
	name   string
}

// Generate sends the prompt as a single user turn and returns the completion text.
func (m *model) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.models.GenerateContent(ctx, m.name, genai.Text(prompt), nil)
	if err != nil {
		return "", apiError(err)
	}
	return resp.Text(), nil
}

// apiError reduces an API failure to its human-readable message.
func apiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &ProviderError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message, err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Message != "" {
		return &ProviderError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message, err: err}
	}
	return err
}

// ProviderError is a Gemini API rejection.
type ProviderError struct {
	Code    int
	Status  string
	Message string
	err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.err
}
