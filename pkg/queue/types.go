// Package queue claims and executes justify_runs rows across replicas,
// adapting the teacher's session worker-pool idiom (poll, claim with
// SELECT ... FOR UPDATE SKIP LOCKED, heartbeat, orphan recovery) to the
// justification pipeline's run lifecycle.
package queue

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for queue operations.
var (
	// ErrNoRunsAvailable indicates no pending runs are in the queue.
	ErrNoRunsAvailable = errors.New("no runs available")

	// ErrAtCapacity indicates the global concurrent run limit has been reached.
	ErrAtCapacity = errors.New("at capacity")
)

// RunStatus is the lifecycle state of a justify_runs row.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusTimedOut   RunStatus = "timed_out"
	RunStatusCancelled  RunStatus = "cancelled"
)

// JustifyRun is a single queued justification pipeline invocation.
type JustifyRun struct {
	ID                string
	ProjectRoot       string
	Status            RunStatus
	PodID             string
	OptionsJSON       []byte
	ResultJSON        []byte
	Error             string
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	LastInteractionAt time.Time
}

// RunExecutor is the interface for run processing. It owns the entire run
// lifecycle internally: deserializing options, driving the pipeline, and
// persisting justifications progressively (spec.md §2 control flow). The
// worker only handles claiming, heartbeat, terminal status update.
type RunExecutor interface {
	Execute(ctx context.Context, run *JustifyRun) *ExecutionResult
}

// ExecutionResult is the terminal outcome of a run.
type ExecutionResult struct {
	Status     RunStatus
	ResultJSON []byte
	Error      error
}

// PoolHealth reports health for the entire worker pool.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	DBReachable      bool           `json:"db_reachable"`
	DBError          string         `json:"db_error,omitempty"`
	PodID            string         `json:"pod_id"`
	ActiveWorkers    int            `json:"active_workers"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveRuns       int            `json:"active_runs"`
	MaxConcurrent    int            `json:"max_concurrent"`
	QueueDepth       int            `json:"queue_depth"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth reports health for a single worker.
type WorkerHealth struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	CurrentRunID  string    `json:"current_run_id,omitempty"`
	RunsProcessed int       `json:"runs_processed"`
	LastActivity  time.Time `json:"last_activity"`
}
