// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/shikshaq/shikshaq-chat/internal/domain"
)

// Repository defines the interface for persisting visitors and the chat audit trail.
type Repository interface {
	// GetVisitor retrieves a visitor by ID. It returns nil, nil when absent.
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// TouchVisitor creates the visitor if needed and updates last_seen_at.
	TouchVisitor(ctx context.Context, visitorID string, seenAt time.Time) error

	// RecordExchange stores an exchange with its attempts and bumps the
	// visitor's chat count.
	RecordExchange(ctx context.Context, ex *domain.Exchange) error

	// ExchangeStats aggregates exchanges created at or after since.
	ExchangeStats(ctx context.Context, since time.Time) (*domain.ExchangeStats, error)

	// PruneExchanges deletes exchanges older than olderThan and returns the count.
	PruneExchanges(ctx context.Context, olderThan time.Duration) (int64, error)

	// PruneVisitors deletes visitors whose last_seen_at is older than olderThan.
	PruneVisitors(ctx context.Context, olderThan time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
