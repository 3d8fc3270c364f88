// Package audit records a privacy-preserving trail of chat exchanges.
// Only message sizes and outcomes are kept, never message or answer text.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shikshaq/shikshaq-chat/internal/chat"
	"github.com/shikshaq/shikshaq-chat/internal/domain"
)

const writeTimeout = 5 * time.Second

// Sink persists exchanges. store.Repository satisfies it.
type Sink interface {
	RecordExchange(ctx context.Context, ex *domain.Exchange) error
}

// Recorder accepts finished exchanges.
type Recorder interface {
	Record(ex *domain.Exchange)
	Close(ctx context.Context) error
}

// Config controls the asynchronous recorder.
type Config struct {
	Enabled   bool
	QueueSize int
}

// NewRecorder returns an asynchronous recorder writing to sink, or a no-op
// recorder when auditing is disabled.
func NewRecorder(cfg Config, sink Sink, logger *slog.Logger) Recorder {
	if !cfg.Enabled || sink == nil {
		return Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	r := &AsyncRecorder{
		sink:   sink,
		logger: logger,
		queue:  make(chan *domain.Exchange, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// AsyncRecorder writes exchanges from a bounded queue on a single goroutine.
// Exchanges that arrive while the queue is full are dropped.
type AsyncRecorder struct {
	sink   Sink
	logger *slog.Logger
	queue  chan *domain.Exchange
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Record enqueues ex without blocking.
func (r *AsyncRecorder) Record(ex *domain.Exchange) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- ex:
	default:
		r.logger.Warn("Audit queue full, dropping exchange",
			"request_id", ex.RequestID,
			"status", ex.Status,
		)
	}
}

// Close stops accepting exchanges and waits for the queue to drain or ctx to end.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for ex := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.sink.RecordExchange(ctx, ex); err != nil {
			r.logger.Error("Failed to record chat exchange",
				"request_id", ex.RequestID,
				"error", err,
			)
		}
		cancel()
	}
}

// Nop discards every exchange.
type Nop struct{}

// Record does nothing.
func (Nop) Record(*domain.Exchange) {}

// Close does nothing.
func (Nop) Close(context.Context) error { return nil }

// Entry describes one finished chat request.
type Entry struct {
	VisitorID string
	RequestID string
	Transport string
	Request   chat.Request
	Result    *chat.Result
	Err       error
	Started   time.Time
}

// NewExchange converts a finished request into its audit record.
func NewExchange(e Entry) *domain.Exchange {
	now := time.Now()
	ex := &domain.Exchange{
		VisitorID:     e.VisitorID,
		RequestID:     e.RequestID,
		Transport:     e.Transport,
		MessageLength: len(e.Request.Message),
		HistoryTurns:  len(e.Request.History),
		CreatedAt:     now,
	}
	if !e.Started.IsZero() {
		ex.Latency = now.Sub(e.Started)
	}

	var attempts []chat.Attempt
	switch {
	case e.Err == nil && e.Result != nil:
		ex.Status = domain.ExchangeAnswered
		ex.Model = e.Result.Model
		attempts = e.Result.Attempts
	default:
		ex.Status = domain.ExchangeFailed
		ex.ErrorKind = string(chat.KindOf(e.Err))
		if e.Err != nil {
			ex.ErrorMessage = e.Err.Error()
		}
		var chatErr *chat.Error
		if errors.As(e.Err, &chatErr) {
			ex.ErrorMessage = chatErr.Message()
			attempts = chatErr.Attempts
			if chatErr.Kind == chat.KindInvalidInput || chatErr.Kind == chat.KindMisconfigured {
				ex.Status = domain.ExchangeRejected
			}
		}
	}

	for i, a := range attempts {
		ea := domain.ExchangeAttempt{
			Ordinal: i + 1,
			Model:   a.Model,
			Outcome: string(a.Outcome),
			Elapsed: a.Elapsed,
		}
		if a.Err != nil {
			ea.Error = a.Err.Error()
		}
		ex.Attempts = append(ex.Attempts, ea)
	}
	return ex
}
