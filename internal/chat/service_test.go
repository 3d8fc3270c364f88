package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu      sync.Mutex
	keys    []string
	prompts []string
	calls   []string
	models  map[string]func(ctx context.Context) (string, error)
}

func (p *fakeProvider) factory(_ context.Context, apiKey string) (Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, apiKey)
	return p, nil
}

func (p *fakeProvider) Model(name string) Model {
	return fakeModel{p: p, name: name}
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) calledModels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakeProvider) sentPrompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

type fakeModel struct {
	p    *fakeProvider
	name string
}

func (m fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.p.mu.Lock()
	m.p.calls = append(m.p.calls, m.name)
	m.p.prompts = append(m.p.prompts, prompt)
	fn := m.p.models[m.name]
	m.p.mu.Unlock()
	if fn == nil {
		return "", errors.New("model not found")
	}
	return fn(ctx)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(p *fakeProvider, opts Options) *Service {
	return NewService(opts, p.factory, quietLogger())
}

func TestAnswerMissingCredential(t *testing.T) {
	p := &fakeProvider{}
	svc := newTestService(p, Options{Models: []string{"fast-model"}})

	for _, msg := range []string{"Is it free?", ""} {
		_, err := svc.Answer(context.Background(), Request{Message: msg})
		assert.Equal(t, KindMisconfigured, KindOf(err))
		assert.ErrorIs(t, err, ErrMissingCredential)
	}
	assert.Empty(t, p.keys)
	assert.Zero(t, p.callCount())
}

func TestAnswerEmptyMessage(t *testing.T) {
	p := &fakeProvider{}
	svc := newTestService(p, Options{APIKey: "k", Models: []string{"fast-model"}})

	_, err := svc.Answer(context.Background(), Request{Message: ""})
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.ErrorIs(t, err, ErrMessageRequired)
	assert.Zero(t, p.callCount())
}

func TestAnswerWhitespaceMessageIsForwarded(t *testing.T) {
	p := &fakeProvider{models: map[string]func(context.Context) (string, error){
		"fast-model": reply("How can I help?"),
	}}
	svc := newTestService(p, Options{APIKey: "k", Models: []string{"fast-model"}, SystemPrompt: "SYSTEM"})

	res, err := svc.Answer(context.Background(), Request{Message: "   \n"})
	require.NoError(t, err)

	assert.Equal(t, "How can I help?", res.Text)
	assert.Equal(t, []string{"fast-model"}, p.calledModels())
	require.Len(t, p.sentPrompts(), 1)
	assert.Contains(t, p.sentPrompts()[0], "User:    \n")
}

func TestAnswerEmptyCandidates(t *testing.T) {
	p := &fakeProvider{}
	svc := newTestService(p, Options{APIKey: "k"})

	_, err := svc.Answer(context.Background(), Request{Message: "hi"})
	assert.Equal(t, KindMisconfigured, KindOf(err))
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Zero(t, p.callCount())
}

func TestAnswerFastModelTimesOutProModelAnswers(t *testing.T) {
	p := &fakeProvider{models: map[string]func(context.Context) (string, error){
		"fast-model": hang,
		"pro-model":  reply("Yes, ShikshAq is free!"),
	}}
	svc := newTestService(p, Options{
		APIKey:         "k",
		Models:         []string{"fast-model", "pro-model"},
		AttemptTimeout: 20 * time.Millisecond,
		SystemPrompt:   "SYSTEM",
	})

	res, err := svc.Answer(context.Background(), Request{Message: "Is it free?"})
	require.NoError(t, err)

	assert.Equal(t, "Yes, ShikshAq is free!", res.Text)
	assert.Equal(t, "pro-model", res.Model)
	assert.Len(t, res.Attempts, 2)
	assert.Equal(t, []string{"fast-model", "pro-model"}, p.calledModels())
	assert.Equal(t, []string{"k"}, p.keys)
}

func TestAnswerInvalidKeySingleCandidate(t *testing.T) {
	p := &fakeProvider{models: map[string]func(context.Context) (string, error){
		"fast-model": fail("invalid API key"),
	}}
	svc := newTestService(p, Options{APIKey: "bad", Models: []string{"fast-model"}})

	_, err := svc.Answer(context.Background(), Request{Message: "hello"})

	var chatErr *Error
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, KindAllProvidersFailed, chatErr.Kind)
	assert.Equal(t, "invalid API key", chatErr.Message())
	assert.Equal(t, 1, p.callCount())
}

func TestAnswerIgnoresHistoryInPrompt(t *testing.T) {
	p := &fakeProvider{models: map[string]func(context.Context) (string, error){
		"m": reply("ok"),
	}}
	svc := newTestService(p, Options{APIKey: "k", Models: []string{"m"}, SystemPrompt: "SYSTEM"})

	_, err := svc.Answer(context.Background(), Request{
		Message: "What subjects?",
		History: []Turn{{Role: "user", Text: "earlier secret question"}},
	})
	require.NoError(t, err)

	prompts := p.sentPrompts()
	require.Len(t, prompts, 1)
	prompt := prompts[0]
	assert.True(t, strings.HasPrefix(prompt, "SYSTEM"))
	assert.Contains(t, prompt, "User: What subjects?")
	assert.True(t, strings.HasSuffix(prompt, "Assistant:"))
	assert.NotContains(t, prompt, "earlier secret question")
}

func TestAnswerClientFactoryFailure(t *testing.T) {
	svc := NewService(Options{APIKey: "k", Models: []string{"m"}}, func(context.Context, string) (Provider, error) {
		return nil, errors.New("dial failed")
	}, quietLogger())

	_, err := svc.Answer(context.Background(), Request{Message: "hi"})
	assert.Equal(t, KindAllProvidersFailed, KindOf(err))
	assert.Contains(t, err.Error(), "dial failed")
}

func TestNewServiceCopiesModels(t *testing.T) {
	models := []string{"a", "b"}
	svc := NewService(Options{APIKey: "k", Models: models}, nil, nil)
	models[0] = "changed"

	assert.Equal(t, []string{"a", "b"}, svc.Models())
	assert.True(t, svc.Configured())
}
