package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codegraph-labs/justify/pkg/config"
	"github.com/codegraph-labs/justify/pkg/graph"
	testutil "github.com/codegraph-labs/justify/test/util"
)

func retentionTestConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		RunRetentionDays:      365,
		StaleClarificationTTL: 1 * time.Hour,
		CleanupInterval:       1 * time.Hour,
	}
}

func TestService_PurgesOldTerminalRuns(t *testing.T) {
	adapter, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO justify_runs (id, project_root, status, completed_at)
		VALUES ($1, $2, $3, $4)`,
		"old-run", "/repo", "completed", time.Now().Add(-400*24*time.Hour))
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO justify_runs (id, project_root, status, completed_at)
		VALUES ($1, $2, $3, $4)`,
		"recent-run", "/repo", "completed", time.Now())
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO justify_runs (id, project_root, status)
		VALUES ($1, $2, $3)`,
		"pending-run", "/repo", "pending")
	require.NoError(t, err)

	svc := NewService(retentionTestConfig(), db, adapter)
	svc.runAll(ctx)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM justify_runs WHERE id = 'old-run'`).Scan(&count))
	require.Equal(t, 0, count, "old terminal run should be purged")

	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM justify_runs WHERE id = 'recent-run'`).Scan(&count))
	require.Equal(t, 1, count, "recent terminal run should survive")

	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM justify_runs WHERE id = 'pending-run'`).Scan(&count))
	require.Equal(t, 1, count, "non-terminal run is never purged regardless of age")
}

func TestService_ClearsStaleClarifications(t *testing.T) {
	adapter, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	for _, id := range []string{"fn-stale", "fn-fresh"} {
		_, err := db.ExecContext(ctx, `
			INSERT INTO entities (id, name, file_path, kind, start_line, end_line)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, id, "src/"+id+".ts", string(graph.KindFunction), 1, 10)
		require.NoError(t, err)
	}

	stale := graph.Justification{
		JustificationID:      graph.NewJustificationID("fn-stale"),
		EntityID:              "fn-stale",
		EntityKind:            graph.KindFunction,
		FilePath:              "src/fn-stale.ts",
		PurposeSummary:        "Processes a refund request.",
		ClarificationPending:  true,
		PendingQuestions:      []graph.ClarificationQuestion{{ID: "q1", Text: "Which feature owns this?", Category: "feature"}},
	}
	stale.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, stale))
	_, err := db.ExecContext(ctx, `UPDATE justifications SET updated_at = $1 WHERE entity_id = 'fn-stale'`,
		time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	fresh := graph.Justification{
		JustificationID:      graph.NewJustificationID("fn-fresh"),
		EntityID:              "fn-fresh",
		EntityKind:            graph.KindFunction,
		FilePath:              "src/fn-fresh.ts",
		PurposeSummary:        "Validates a coupon code.",
		ClarificationPending:  true,
		PendingQuestions:      []graph.ClarificationQuestion{{ID: "q1", Text: "Which feature owns this?", Category: "feature"}},
	}
	fresh.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, fresh))

	svc := NewService(retentionTestConfig(), db, adapter)
	svc.runAll(ctx)

	reloadedStale, ok, err := adapter.GetJustification(ctx, "fn-stale")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, reloadedStale.ClarificationPending, "stale clarification should be auto-cleared")
	require.Empty(t, reloadedStale.PendingQuestions)

	reloadedFresh, ok, err := adapter.GetJustification(ctx, "fn-fresh")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, reloadedFresh.ClarificationPending, "recently raised clarification should survive one sweep")
}

func TestService_ZeroTTLDisablesClarificationSweep(t *testing.T) {
	adapter, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO entities (id, name, file_path, kind, start_line, end_line)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		"fn-x", "fn-x", "src/fn-x.ts", string(graph.KindFunction), 1, 10)
	require.NoError(t, err)

	j := graph.Justification{
		JustificationID:      graph.NewJustificationID("fn-x"),
		EntityID:              "fn-x",
		EntityKind:            graph.KindFunction,
		FilePath:              "src/fn-x.ts",
		PurposeSummary:        "Schedules a retry.",
		ClarificationPending:  true,
		PendingQuestions:      []graph.ClarificationQuestion{{ID: "q1", Text: "?", Category: "feature"}},
	}
	j.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, j))
	_, err = db.ExecContext(ctx, `UPDATE justifications SET updated_at = $1 WHERE entity_id = 'fn-x'`,
		time.Now().Add(-999*time.Hour))
	require.NoError(t, err)

	cfg := &config.RetentionConfig{RunRetentionDays: 365, StaleClarificationTTL: 0, CleanupInterval: time.Hour}
	svc := NewService(cfg, db, adapter)
	svc.runAll(ctx)

	reloaded, ok, err := adapter.GetJustification(ctx, "fn-x")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, reloaded.ClarificationPending, "zero TTL must disable the sweep entirely")
}
