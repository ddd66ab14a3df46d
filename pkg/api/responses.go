package api

import (
	"time"

	"github.com/codegraph-labs/justify/pkg/config"
	"github.com/codegraph-labs/justify/pkg/graphstore"
	"github.com/codegraph-labs/justify/pkg/queue"
)

// CreateRunResponse is returned by POST /runs.
type CreateRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// RunResponse is returned by GET /runs/:id.
type RunResponse struct {
	ID          string     `json:"id"`
	ProjectRoot string     `json:"project_root"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
}

func runToResponse(run *queue.JustifyRun) RunResponse {
	resp := RunResponse{
		ID:          run.ID,
		ProjectRoot: run.ProjectRoot,
		Status:      string(run.Status),
		Error:       run.Error,
		CreatedAt:   run.CreatedAt,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	if len(run.ResultJSON) > 0 {
		resp.Result = rawJSON(run.ResultJSON)
	}
	return resp
}

// rawJSON lets a []byte column re-serialize as embedded JSON rather than a
// base64 string.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return r, nil }

// CancelRunResponse is returned by POST /runs/:id/cancel.
type CancelRunResponse struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status     string                   `json:"status"`
	Database   *graphstore.HealthStatus `json:"database,omitempty"`
	WorkerPool *queue.PoolHealth        `json:"worker_pool,omitempty"`
	Config     config.ConfigStats       `json:"config"`
}

// ErrorResponse is the uniform JSON error envelope for every handler.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProgressResponse is returned by GET /runs/:id/progress.
type ProgressResponse struct {
	Phase         string `json:"phase"`
	Current       int    `json:"current"`
	Total         int    `json:"total"`
	CurrentEntity string `json:"current_entity,omitempty"`
	Message       string `json:"message,omitempty"`
}
