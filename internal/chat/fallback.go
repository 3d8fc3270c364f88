package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultAttemptTimeout is the per-candidate deadline of the chat endpoint.
const DefaultAttemptTimeout = 30 * time.Second

// AttemptFunc performs one generation call against a named candidate.
type AttemptFunc func(ctx context.Context, model string) (string, error)

// Policy is an ordered candidate list with a per-attempt deadline.
type Policy struct {
	Candidates []string
	Deadline   time.Duration
}

// Run tries each candidate in order, at most once, and returns the first
// successful completion. Each attempt gets its own deadline; worst-case
// latency is len(Candidates) * Deadline. observe, if non-nil, is called
// after every settled attempt.
func (p Policy) Run(ctx context.Context, fn AttemptFunc, observe func(Attempt)) (*Result, error) {
	if len(p.Candidates) == 0 {
		return nil, &Error{Kind: KindMisconfigured, Cause: ErrNoCandidates}
	}

	deadline := p.Deadline
	if deadline <= 0 {
		deadline = DefaultAttemptTimeout
	}

	attempts := make([]Attempt, 0, len(p.Candidates))
	var lastErr error

	for _, model := range p.Candidates {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempt, text := runAttempt(ctx, model, deadline, fn)
		attempts = append(attempts, attempt)
		if observe != nil {
			observe(attempt)
		}

		if attempt.Outcome == OutcomeSuccess {
			return &Result{Text: text, Model: model, Attempts: attempts}, nil
		}
		lastErr = attempt.Err
	}

	return nil, &Error{Kind: KindAllProvidersFailed, Cause: lastErr, Attempts: attempts}
}

type attemptResult struct {
	text string
	err  error
}

// runAttempt races one generation call against its deadline. The attempt
// context is cancelled on return, which aborts a straggling provider call;
// the buffered channel lets the call's goroutine finish even if nobody reads.
func runAttempt(ctx context.Context, model string, deadline time.Duration, fn AttemptFunc) (Attempt, string) {
	attemptCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	done := make(chan attemptResult, 1)
	start := time.Now()
	go func() {
		text, err := fn(attemptCtx, model)
		done <- attemptResult{text: text, err: err}
	}()

	select {
	case r := <-done:
		return settle(ctx, attemptCtx, model, deadline, time.Since(start), r)
	case <-attemptCtx.Done():
		select {
		case r := <-done:
			return settle(ctx, attemptCtx, model, deadline, time.Since(start), r)
		default:
		}
		return failed(ctx, model, deadline, time.Since(start), nil), ""
	}
}

func settle(parent, attemptCtx context.Context, model string, deadline, elapsed time.Duration, r attemptResult) (Attempt, string) {
	if r.err == nil {
		return Attempt{Model: model, Outcome: OutcomeSuccess, Elapsed: elapsed}, r.text
	}
	// A provider honouring its context reports the deadline as its own error.
	if attemptCtx.Err() != nil {
		return failed(parent, model, deadline, elapsed, r.err), ""
	}
	return Attempt{
		Model:   model,
		Outcome: OutcomeError,
		Err:     &AttemptError{Model: model, Kind: KindProviderError, Err: r.err},
		Elapsed: elapsed,
	}, ""
}

// failed classifies an attempt whose context ended: the caller going away is
// an error, the attempt's own deadline expiring is a timeout.
func failed(parent context.Context, model string, deadline, elapsed time.Duration, cause error) Attempt {
	if err := parent.Err(); err != nil {
		return Attempt{
			Model:   model,
			Outcome: OutcomeError,
			Err:     &AttemptError{Model: model, Kind: KindProviderError, Err: err},
			Elapsed: elapsed,
		}
	}

	timeoutErr := fmt.Errorf("%w: %s after %s", ErrAttemptTimeout, model, deadline)
	if cause != nil && !errors.Is(cause, context.DeadlineExceeded) {
		timeoutErr = fmt.Errorf("%w: %s after %s: %w", ErrAttemptTimeout, model, deadline, cause)
	}
	return Attempt{
		Model:   model,
		Outcome: OutcomeTimeout,
		Err:     &AttemptError{Model: model, Kind: KindProviderTimeout, Err: timeoutErr},
		Elapsed: elapsed,
	}
}
