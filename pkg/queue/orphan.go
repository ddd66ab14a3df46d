package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// orphanState tracks orphan detection metrics (thread-safe).
type orphanState struct {
	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// runOrphanDetection periodically scans for orphaned runs. All pods run
// this independently; operations are idempotent.
func (p *WorkerPool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.detectAndRecoverOrphans(ctx); err != nil {
				slog.Error("Orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds in_progress runs with stale heartbeats and
// marks them timed_out (terminal state).
func (p *WorkerPool) detectAndRecoverOrphans(ctx context.Context) error {
	threshold := time.Now().Add(-p.config.OrphanThreshold)

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, pod_id, last_interaction_at FROM justify_runs
		WHERE status = $1 AND last_interaction_at < $2`, string(RunStatusInProgress), threshold)
	if err != nil {
		return fmt.Errorf("failed to query orphaned runs: %w", err)
	}
	type orphan struct {
		id, podID string
		lastSeen  time.Time
	}
	var orphans []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.id, &o.podID, &o.lastSeen); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan orphaned run: %w", err)
		}
		orphans = append(orphans, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(orphans) == 0 {
		p.orphans.mu.Lock()
		p.orphans.lastOrphanScan = time.Now()
		p.orphans.mu.Unlock()
		return nil
	}

	slog.Warn("Detected orphaned runs", "count", len(orphans))

	recovered := 0
	failed := 0
	for _, o := range orphans {
		errorMsg := fmt.Sprintf("Orphaned: no heartbeat from pod %s since %s", o.podID, o.lastSeen.Format(time.RFC3339))
		if err := markRunTimedOut(ctx, p.db, o.id, errorMsg); err != nil {
			slog.Error("Failed to recover orphaned run", "run_id", o.id, "error", err)
			failed++
			continue
		}
		slog.Warn("Orphaned run marked as timed_out", "run_id", o.id, "last_heartbeat", o.lastSeen)
		recovered++
	}

	p.orphans.mu.Lock()
	p.orphans.lastOrphanScan = time.Now()
	p.orphans.orphansRecovered += recovered
	p.orphans.mu.Unlock()

	if failed > 0 {
		slog.Warn("Orphan recovery completed with failures", "total_orphans", len(orphans), "recovered", recovered, "failed", failed)
	}
	return nil
}

// CleanupStartupOrphans performs a one-time cleanup of runs owned by this
// pod that were in-progress when the pod previously crashed.
func CleanupStartupOrphans(ctx context.Context, db *sql.DB, podID string) error {
	rows, err := db.QueryContext(ctx, `SELECT id FROM justify_runs WHERE status = $1 AND pod_id = $2`, string(RunStatusInProgress), podID)
	if err != nil {
		return fmt.Errorf("failed to query startup orphans: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(ids) == 0 {
		return nil
	}
	slog.Warn("Found startup orphans from previous run", "pod_id", podID, "count", len(ids))

	for _, id := range ids {
		errorMsg := fmt.Sprintf("Orphaned: pod %s restarted while run was in progress", podID)
		if err := markRunTimedOut(ctx, db, id, errorMsg); err != nil {
			slog.Error("Failed to mark startup orphan", "run_id", id, "error", err)
			continue
		}
		slog.Info("Startup orphan recovered", "run_id", id)
	}
	return nil
}

func markRunTimedOut(ctx context.Context, db *sql.DB, runID, errorMsg string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE justify_runs SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		string(RunStatusTimedOut), errorMsg, runID)
	return err
}
