package queue

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// EnqueueRun inserts a new pending justify_runs row and returns its id, so
// the next free worker picks it up via the normal claim loop. optionsJSON
// is the JSON-encoded justify.Options the eventual executor will decode.
func EnqueueRun(ctx context.Context, db *sql.DB, projectRoot string, optionsJSON []byte) (string, error) {
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO justify_runs (id, project_root, status, options, created_at, last_interaction_at)
		VALUES ($1, $2, $3, $4, now(), now())`,
		id, projectRoot, string(RunStatusPending), optionsJSON)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetRun loads a single justify_runs row by id.
func GetRun(ctx context.Context, db *sql.DB, id string) (*JustifyRun, bool, error) {
	var run JustifyRun
	var status string
	err := db.QueryRowContext(ctx, `
		SELECT id, project_root, status, pod_id, options, result, error,
		       created_at, started_at, completed_at, last_interaction_at
		FROM justify_runs WHERE id = $1`, id).Scan(
		&run.ID, &run.ProjectRoot, &status, &run.PodID, &run.OptionsJSON, &run.ResultJSON,
		&run.Error, &run.CreatedAt, &run.StartedAt, &run.CompletedAt, &run.LastInteractionAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	run.Status = RunStatus(status)
	return &run, true, nil
}

// CancelPendingRun marks a not-yet-claimed run as cancelled. Returns false
// if the run was already claimed (or doesn't exist), in which case the
// caller should fall back to WorkerPool.CancelRun for in-process
// cancellation on the owning pod.
func CancelPendingRun(ctx context.Context, db *sql.DB, id string) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE justify_runs SET status = $1, completed_at = now()
		WHERE id = $2 AND status = $3`,
		string(RunStatusCancelled), id, string(RunStatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
