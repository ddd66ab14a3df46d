// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/codegraph-labs/justify/pkg/config"
	"github.com/codegraph-labs/justify/pkg/graphstore"
)

// Service periodically enforces retention policies:
//   - Purges terminal justify_runs rows past RunRetentionDays
//   - Auto-clears clarification_pending on justifications that have sat
//     unanswered past StaleClarificationTTL
//
// Justifications themselves are deleted only through
// Adapter.DeleteJustification, when a file is deleted or an explicit
// clear is requested (spec.md §3) — that path is driven by ingestion and
// the API, not by this service. All operations here are idempotent and
// safe to run from multiple pods.
type Service struct {
	config  *config.RetentionConfig
	db      *sql.DB
	adapter graphstore.Adapter

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service. db is used for direct
// justify_runs purge queries (see graphstore.PostgresAdapter.DB); adapter
// is used for the stale-clarification sweep.
func NewService(cfg *config.RetentionConfig, db *sql.DB, adapter graphstore.Adapter) *Service {
	return &Service{config: cfg, db: db, adapter: adapter}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"run_retention_days", s.config.RunRetentionDays,
		"stale_clarification_ttl", s.config.StaleClarificationTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.purgeOldRuns(ctx)
	s.clearStaleClarifications(ctx)
}

// purgeOldRuns deletes justify_runs rows that reached a terminal status
// more than RunRetentionDays ago.
func (s *Service) purgeOldRuns(ctx context.Context) {
	if s.config.RunRetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.config.RunRetentionDays)

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM justify_runs
		WHERE status IN ('completed', 'failed', 'timed_out', 'cancelled')
		  AND completed_at IS NOT NULL
		  AND completed_at < $1`, cutoff)
	if err != nil {
		slog.Error("Retention: purge old runs failed", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("Retention: purged old runs", "count", n)
	}
}

// clarificationScanLimit bounds a single sweep so one cleanup tick can't
// lock an unbounded number of rows on a backlog.
const clarificationScanLimit = 500

// clearStaleClarifications auto-clears clarification_pending on
// justifications that have sat unanswered longer than
// StaleClarificationTTL, so an abandoned request doesn't block
// GetPendingClarifications forever.
func (s *Service) clearStaleClarifications(ctx context.Context) {
	if s.config.StaleClarificationTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.config.StaleClarificationTTL)

	pending, err := s.adapter.GetPendingClarifications(ctx, clarificationScanLimit)
	if err != nil {
		slog.Error("Retention: pending clarification scan failed", "error", err)
		return
	}

	var cleared int
	for _, j := range pending {
		if !j.UpdatedAt.Before(cutoff) {
			continue
		}
		j.ClarificationPending = false
		j.PendingQuestions = nil
		if err := s.adapter.UpsertJustification(ctx, j); err != nil {
			slog.Error("Retention: clarification auto-clear failed", "entity_id", j.EntityID, "error", err)
			continue
		}
		cleared++
	}
	if cleared > 0 {
		slog.Info("Retention: auto-cleared stale clarifications", "count", cleared)
	}
}
