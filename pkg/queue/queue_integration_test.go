package queue_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-labs/justify/pkg/config"
	"github.com/codegraph-labs/justify/pkg/queue"
	testutil "github.com/codegraph-labs/justify/test/util"
)

func intTestQueueConfig() *config.QueueConfig {
	return &config.QueueConfig{
		WorkerCount:             2,
		MaxConcurrentSessions:   10,
		PollInterval:            100 * time.Millisecond,
		PollIntervalJitter:      0,
		SessionTimeout:          30 * time.Second,
		GracefulShutdownTimeout: 10 * time.Second,
		OrphanDetectionInterval: 1 * time.Second,
		OrphanThreshold:         2 * time.Second,
	}
}

func createTestRun(ctx context.Context, t *testing.T, db *sql.DB, projectRoot string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO justify_runs (id, project_root, status, options, created_at, last_interaction_at)
		VALUES ($1, $2, $3, $4, now(), now())`,
		id, projectRoot, string(queue.RunStatusPending), []byte(`{}`))
	require.NoError(t, err)
	return id
}

func runStatus(ctx context.Context, t *testing.T, db *sql.DB, id string) string {
	t.Helper()
	var status string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT status FROM justify_runs WHERE id = $1`, id).Scan(&status))
	return status
}

func awaitCondition(t *testing.T, timeout, interval time.Duration, msg string, condition func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out: %s", msg)
		default:
			if condition() {
				return
			}
			time.Sleep(interval)
		}
	}
}

// TestForUpdateSkipLockedClaiming verifies a single worker can atomically
// claim a pending run and that a second claim attempt on an empty queue
// reports ErrNoRunsAvailable.
func TestForUpdateSkipLockedClaiming(t *testing.T) {
	_, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	runID := createTestRun(ctx, t, db, "/test/claim-single")

	executor := noopExecutor{result: &queue.ExecutionResult{Status: queue.RunStatusCompleted}}
	cfg := intTestQueueConfig()
	pool := queue.NewWorkerPool("test-pod", db, cfg, executor)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	awaitCondition(t, 5*time.Second, 50*time.Millisecond, "run should complete", func() bool {
		return runStatus(ctx, t, db, runID) == string(queue.RunStatusCompleted)
	})
}

// TestConcurrentClaimsDifferentRuns verifies concurrent workers each claim a
// distinct run with no duplicate claims, grounded on the FOR UPDATE SKIP
// LOCKED guarantee.
func TestConcurrentClaimsDifferentRuns(t *testing.T) {
	_, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	runIDs := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		id := createTestRun(ctx, t, db, fmt.Sprintf("/test/concurrent-%d", i))
		runIDs[id] = struct{}{}
	}

	var mu sync.Mutex
	claimed := make(map[string]int)
	executor := trackingExecutor{claimed: claimed, mu: &mu}

	cfg := intTestQueueConfig()
	cfg.WorkerCount = 5
	pool := queue.NewWorkerPool("test-pod", db, cfg, &executor)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	awaitCondition(t, 5*time.Second, 50*time.Millisecond, "all runs should be claimed exactly once", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(executor.claimed) == 5
	})

	mu.Lock()
	defer mu.Unlock()
	for id, count := range executor.claimed {
		assert.Equal(t, 1, count, "run %s claimed more than once", id)
		_, known := runIDs[id]
		assert.True(t, known, "claimed run %s was not in the original set", id)
	}
	assert.Len(t, executor.claimed, 5)
}

// TestOrphanRecovery verifies a run with a stale heartbeat is detected and
// marked timed_out by the orphan scanner.
func TestOrphanRecovery(t *testing.T) {
	_, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	id := uuid.NewString()
	staleBeat := time.Now().Add(-10 * time.Minute)
	_, err := db.ExecContext(ctx, `
		INSERT INTO justify_runs (id, project_root, status, pod_id, options, created_at, started_at, last_interaction_at)
		VALUES ($1, $2, $3, $4, $5, now(), now(), $6)`,
		id, "/test/orphan", string(queue.RunStatusInProgress), "crashed-pod", []byte(`{}`), staleBeat)
	require.NoError(t, err)

	cfg := intTestQueueConfig()
	executor := noopExecutor{result: &queue.ExecutionResult{Status: queue.RunStatusCompleted}}
	pool := queue.NewWorkerPool("test-pod-2", db, cfg, executor)
	require.NoError(t, pool.Start(ctx))
	defer pool.Stop()

	awaitCondition(t, 5*time.Second, 100*time.Millisecond, "orphan should be marked timed_out", func() bool {
		return runStatus(ctx, t, db, id) == string(queue.RunStatusTimedOut)
	})
}

// TestCleanupStartupOrphans verifies CleanupStartupOrphans marks runs owned
// by the restarting pod as timed_out without needing the orphan scanner.
func TestCleanupStartupOrphans(t *testing.T) {
	_, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	id := uuid.NewString()
	_, err := db.ExecContext(ctx, `
		INSERT INTO justify_runs (id, project_root, status, pod_id, options, created_at, started_at, last_interaction_at)
		VALUES ($1, $2, $3, $4, $5, now(), now(), now())`,
		id, "/test/startup-orphan", string(queue.RunStatusInProgress), "pod-restarting", []byte(`{}`))
	require.NoError(t, err)

	require.NoError(t, queue.CleanupStartupOrphans(ctx, db, "pod-restarting"))
	assert.Equal(t, string(queue.RunStatusTimedOut), runStatus(ctx, t, db, id))
}

// TestWorkerPoolHealth verifies Health() reports queue depth and active
// run counts consistent with justify_runs state.
func TestWorkerPoolHealth(t *testing.T) {
	_, db := testutil.SetupTestAdapter(t)
	ctx := context.Background()

	createTestRun(ctx, t, db, "/test/health-1")
	createTestRun(ctx, t, db, "/test/health-2")

	cfg := intTestQueueConfig()
	block := make(chan struct{})
	executor := blockingExecutor{block: block}
	pool := queue.NewWorkerPool("health-pod", db, cfg, executor)
	require.NoError(t, pool.Start(ctx))
	defer func() {
		close(block)
		pool.Stop()
	}()

	awaitCondition(t, 5*time.Second, 50*time.Millisecond, "pool should report healthy with active runs", func() bool {
		h := pool.Health()
		return h.IsHealthy && h.ActiveRuns > 0
	})
}

type noopExecutor struct {
	result *queue.ExecutionResult
}

func (e noopExecutor) Execute(ctx context.Context, run *queue.JustifyRun) *queue.ExecutionResult {
	return e.result
}

type trackingExecutor struct {
	claimed map[string]int
	mu      *sync.Mutex
}

func (e *trackingExecutor) Execute(ctx context.Context, run *queue.JustifyRun) *queue.ExecutionResult {
	e.mu.Lock()
	e.claimed[run.ID]++
	e.mu.Unlock()
	return &queue.ExecutionResult{Status: queue.RunStatusCompleted}
}

type blockingExecutor struct {
	block chan struct{}
}

func (e blockingExecutor) Execute(ctx context.Context, run *queue.JustifyRun) *queue.ExecutionResult {
	select {
	case <-e.block:
	case <-ctx.Done():
	}
	return &queue.ExecutionResult{Status: queue.RunStatusCompleted}
}
