package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted is an AttemptFunc that answers per model and records call order.
type scripted struct {
	mu      sync.Mutex
	calls   []string
	answers map[string]func(ctx context.Context) (string, error)
}

func newScripted() *scripted {
	return &scripted{answers: make(map[string]func(ctx context.Context) (string, error))}
}

func (s *scripted) on(model string, fn func(ctx context.Context) (string, error)) *scripted {
	s.answers[model] = fn
	return s
}

func (s *scripted) attempt(ctx context.Context, model string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, model)
	fn := s.answers[model]
	s.mu.Unlock()
	if fn == nil {
		return "", errors.New("unknown model " + model)
	}
	return fn(ctx)
}

func (s *scripted) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func reply(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func fail(msg string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", errors.New(msg) }
}

// hang blocks until the attempt context ends and honours cancellation.
func hang(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestPolicyFirstCandidateWins(t *testing.T) {
	s := newScripted().
		on("a", reply("first")).
		on("b", reply("second"))

	res, err := Policy{Candidates: []string{"a", "b"}, Deadline: time.Second}.Run(context.Background(), s.attempt, nil)
	require.NoError(t, err)

	assert.Equal(t, "first", res.Text)
	assert.Equal(t, "a", res.Model)
	assert.Len(t, res.Attempts, 1)
	assert.Equal(t, []string{"a"}, s.called())
}

func TestPolicyFallsBackOnError(t *testing.T) {
	s := newScripted().
		on("a", fail("quota exceeded")).
		on("b", reply("from b"))

	res, err := Policy{Candidates: []string{"a", "b"}, Deadline: time.Second}.Run(context.Background(), s.attempt, nil)
	require.NoError(t, err)

	assert.Equal(t, "from b", res.Text)
	assert.Equal(t, []string{"a", "b"}, s.called())
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, OutcomeError, res.Attempts[0].Outcome)
	assert.Equal(t, OutcomeSuccess, res.Attempts[1].Outcome)
}

func TestPolicyFallsBackOnTimeout(t *testing.T) {
	s := newScripted().
		on("a", hang).
		on("b", reply("from b"))

	res, err := Policy{Candidates: []string{"a", "b"}, Deadline: 20 * time.Millisecond}.Run(context.Background(), s.attempt, nil)
	require.NoError(t, err)

	assert.Equal(t, "from b", res.Text)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, OutcomeTimeout, res.Attempts[0].Outcome)
	assert.ErrorIs(t, res.Attempts[0].Err, ErrAttemptTimeout)
}

func TestPolicyDoesNotWaitForProviderIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	s := newScripted().
		on("stuck", func(context.Context) (string, error) {
			<-release
			return "too late", nil
		}).
		on("b", reply("from b"))

	start := time.Now()
	res, err := Policy{Candidates: []string{"stuck", "b"}, Deadline: 20 * time.Millisecond}.Run(context.Background(), s.attempt, nil)
	require.NoError(t, err)

	assert.Equal(t, "from b", res.Text)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, OutcomeTimeout, res.Attempts[0].Outcome)
}

func TestPolicyAllFailCarriesLastError(t *testing.T) {
	s := newScripted().
		on("a", fail("first failure")).
		on("b", hang).
		on("c", fail("invalid API key"))

	_, err := Policy{Candidates: []string{"a", "b", "c"}, Deadline: 20 * time.Millisecond}.Run(context.Background(), s.attempt, nil)
	require.Error(t, err)

	var chatErr *Error
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, KindAllProvidersFailed, chatErr.Kind)
	assert.Equal(t, "invalid API key", chatErr.Message())
	assert.Len(t, chatErr.Attempts, 3)
	assert.Equal(t, []string{"a", "b", "c"}, s.called())
}

func TestPolicyTimeoutAsLastErrorKeepsKind(t *testing.T) {
	s := newScripted().on("a", hang)

	_, err := Policy{Candidates: []string{"a"}, Deadline: 10 * time.Millisecond}.Run(context.Background(), s.attempt, nil)

	var attemptErr *AttemptError
	require.ErrorAs(t, err, &attemptErr)
	assert.Equal(t, KindProviderTimeout, attemptErr.Kind)
	assert.Equal(t, KindAllProvidersFailed, KindOf(err))
}

func TestPolicyEmptyCandidatesIsMisconfigured(t *testing.T) {
	s := newScripted()

	_, err := Policy{}.Run(context.Background(), s.attempt, nil)
	assert.Equal(t, KindMisconfigured, KindOf(err))
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Empty(t, s.called())
}

func TestPolicyStopsWhenCallerGoesAway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newScripted().
		on("a", func(ctx context.Context) (string, error) {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		}).
		on("b", reply("never"))

	_, err := Policy{Candidates: []string{"a", "b"}, Deadline: time.Second}.Run(ctx, s.attempt, nil)

	assert.Equal(t, KindAllProvidersFailed, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, s.called())
}

func TestPolicyObservesEveryAttempt(t *testing.T) {
	s := newScripted().
		on("a", fail("boom")).
		on("b", reply("ok"))

	var seen []Attempt
	_, err := Policy{Candidates: []string{"a", "b"}, Deadline: time.Second}.Run(context.Background(), s.attempt, func(a Attempt) {
		seen = append(seen, a)
	})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "a", seen[0].Model)
	assert.Equal(t, "b", seen[1].Model)
}

func TestPolicyReturnsTextVerbatim(t *testing.T) {
	raw := "  **Yes!**  ShikshAq is free.\n"
	s := newScripted().on("a", reply(raw))

	res, err := Policy{Candidates: []string{"a"}, Deadline: time.Second}.Run(context.Background(), s.attempt, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, res.Text)
}
