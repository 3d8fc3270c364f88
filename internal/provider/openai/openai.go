// Package openai adapts OpenAI-compatible chat completion APIs to the chat
// provider contract.
package openai

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
	"github.com/shikshaq/shikshaq-chat/internal/chat"
)

var errNoChoices = errors.New("completion returned no choices")

// Client is an OpenAI-compatible handle bound to one API key.
type Client struct {
	api *openai.Client
}

// Factory returns a chat.ClientFactory targeting baseURL, or the OpenAI
// endpoint when baseURL is empty.
func Factory(baseURL string) chat.ClientFactory {
	return func(_ context.Context, apiKey string) (chat.Provider, error) {
		if apiKey == "" {
			return nil, chat.ErrMissingCredential
		}
		cfg := openai.DefaultConfig(apiKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		return &Client{api: openai.NewClientWithConfig(cfg)}, nil
	}
}

// Model returns a handle for the named model.
func (c *Client) Model(name string) chat.Model {
	return &model{api: c.api, name: name}
}

type model struct {
	api  *openai.Client
	name string
}

// Generate sends the prompt as a single user message.
func (m *model) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.name,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return "", &rejection{message: apiErr.Message, err: err}
		}
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// rejection keeps the API's own message as the error text.
type rejection struct {
	message string
	err     error
}

func (e *rejection) Error() string { return e.message }

func (e *rejection) Unwrap() error { return e.err }
