package store

import (
	"context"
	"log/slog"
	"time"
)

const retentionWorkerInterval = time.Hour

// RunRetentionWorker periodically deletes exchanges and visitors older than
// retention until ctx is cancelled. A non-positive retention disables pruning.
func RunRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration) {
	if retention <= 0 {
		slog.Info("Retention worker disabled")
		<-ctx.Done()
		return
	}
	if interval <= 0 {
		interval = retentionWorkerInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Retention worker started", "interval", interval, "retention", retention)

	prune(ctx, repo, retention)
	for {
		select {
		case <-ticker.C:
			prune(ctx, repo, retention)
		case <-ctx.Done():
			slog.Info("Retention worker shutting down", "reason", ctx.Err())
			return
		}
	}
}

func prune(ctx context.Context, repo Repository, retention time.Duration) {
	pruneTable(ctx, "exchanges", retention, repo.PruneExchanges)
	pruneTable(ctx, "visitors", retention, repo.PruneVisitors)
}

func pruneTable(ctx context.Context, table string, retention time.Duration, fn func(context.Context, time.Duration) (int64, error)) {
	deleted, err := fn(ctx, retention)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention worker: context canceled during prune", "table", table, "error", err)
			return
		}
		slog.Error("Retention worker failed to prune", "table", table, "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned rows", "table", table, "count", deleted)
	}
}
