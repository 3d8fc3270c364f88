package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/shikshaq/shikshaq-chat/internal/domain"
	"github.com/shikshaq/shikshaq-chat/internal/shared"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository and applies pending migrations.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	n, err := migrate.Exec(db, "sqlite3", &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations",
	}, migrate.Up)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if n > 0 {
		slog.Info("Applied database migrations", "count", n)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetVisitor retrieves a visitor by ID.
func (s *SQLiteStore) GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	query := `
		SELECT visitor_id, first_seen_at, last_seen_at, chat_count
		FROM visitors WHERE visitor_id = ?`

	var v domain.Visitor
	var firstSeen, lastSeen int64
	err := s.db.QueryRowContext(ctx, query, visitorID).Scan(&v.VisitorID, &firstSeen, &lastSeen, &v.ChatCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}

	v.FirstSeenAt = time.Unix(firstSeen, 0)
	v.LastSeenAt = time.Unix(lastSeen, 0)
	return &v, nil
}

// TouchVisitor creates the visitor if needed and updates last_seen_at.
func (s *SQLiteStore) TouchVisitor(ctx context.Context, visitorID string, seenAt time.Time) error {
	query := `
	INSERT INTO visitors (visitor_id, first_seen_at, last_seen_at, chat_count)
	VALUES (?, ?, ?, 0)
	ON CONFLICT(visitor_id) DO UPDATE SET
		last_seen_at = MAX(visitors.last_seen_at, excluded.last_seen_at)`

	return withRetry(ctx, "touch visitor", func() error {
		_, err := s.db.ExecContext(ctx, query, visitorID, seenAt.Unix(), seenAt.Unix())
		return err
	})
}

// RecordExchange stores an exchange with its attempts.
func (s *SQLiteStore) RecordExchange(ctx context.Context, ex *domain.Exchange) error {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	return withRetry(ctx, "record exchange", func() error {
		return s.recordExchangeOnce(ctx, ex)
	})
}

func (s *SQLiteStore) recordExchangeOnce(ctx context.Context, ex *domain.Exchange) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back exchange insert", "error", rbErr)
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_exchanges (
			id, visitor_id, request_id, transport, message_length, history_turns,
			status, error_kind, error_message, model, latency_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, nullString(ex.VisitorID), nullString(ex.RequestID), ex.Transport,
		ex.MessageLength, ex.HistoryTurns, string(ex.Status),
		nullString(ex.ErrorKind), nullString(ex.ErrorMessage), nullString(ex.Model),
		ex.Latency.Milliseconds(), ex.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}

	for _, a := range ex.Attempts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_attempts (exchange_id, ordinal, model, outcome, error, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ex.ID, a.Ordinal, a.Model, a.Outcome, nullString(a.Error), a.Elapsed.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("insert attempt %d: %w", a.Ordinal, err)
		}
	}

	if ex.VisitorID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO visitors (visitor_id, first_seen_at, last_seen_at, chat_count)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(visitor_id) DO UPDATE SET
				chat_count = visitors.chat_count + 1,
				last_seen_at = MAX(visitors.last_seen_at, excluded.last_seen_at)`,
			ex.VisitorID, ex.CreatedAt.Unix(), ex.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("bump visitor chat count: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit exchange: %w", err)
	}
	return nil
}

// exchangeAttempts returns the attempts recorded for an exchange in order.
func (s *SQLiteStore) exchangeAttempts(ctx context.Context, exchangeID string) ([]domain.ExchangeAttempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, model, outcome, error, elapsed_ms
		FROM chat_attempts WHERE exchange_id = ? ORDER BY ordinal`, exchangeID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close attempt rows", "error", closeErr)
		}
	}()

	var attempts []domain.ExchangeAttempt
	for rows.Next() {
		var a domain.ExchangeAttempt
		var errText sql.NullString
		var elapsedMs int64
		if err := rows.Scan(&a.Ordinal, &a.Model, &a.Outcome, &errText, &elapsedMs); err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		a.Error = errText.String
		a.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// ExchangeStats aggregates exchanges created at or after since.
func (s *SQLiteStore) ExchangeStats(ctx context.Context, since time.Time) (*domain.ExchangeStats, error) {
	stats := &domain.ExchangeStats{ByModel: make(map[string]int64)}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'answered' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(latency_ms), 0)
		FROM chat_exchanges WHERE created_at >= ?`, since.Unix(),
	).Scan(&stats.Total, &stats.Answered, &stats.Failed, &stats.Rejected, &stats.AvgLatencyMs)
	if err != nil {
		return nil, fmt.Errorf("aggregate exchanges: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, COUNT(*) FROM chat_exchanges
		WHERE created_at >= ? AND status = 'answered' AND model IS NOT NULL
		GROUP BY model`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query model counts: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close model count rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var model string
		var count int64
		if err := rows.Scan(&model, &count); err != nil {
			return nil, fmt.Errorf("scan model count: %w", err)
		}
		stats.ByModel[model] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate model counts: %w", err)
	}

	return stats, nil
}

// PruneExchanges deletes exchanges older than olderThan.
func (s *SQLiteStore) PruneExchanges(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan).Unix()

	var deleted int64
	err := withRetry(ctx, "prune exchanges", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to roll back prune", "error", rbErr)
			}
		}()

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM chat_attempts WHERE exchange_id IN (
				SELECT id FROM chat_exchanges WHERE created_at < ?
			)`, threshold); err != nil {
			return fmt.Errorf("delete attempts: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM chat_exchanges WHERE created_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete exchanges: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// PruneVisitors deletes visitors not seen since olderThan ago.
func (s *SQLiteStore) PruneVisitors(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan).Unix()

	var deleted int64
	err := withRetry(ctx, "prune visitors", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE last_seen_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete visitors: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// withRetry retries op with exponential backoff while SQLite reports
// SQLITE_BUSY or a locked database.
func withRetry(ctx context.Context, what string, op func() error) error {
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = op(); err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("SQLite busy, retrying", "op", what, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", what, ctx.Err())
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
