package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/codegraph-labs/justify/pkg/events"
	"github.com/codegraph-labs/justify/pkg/justify"
)

// PipelineExecutor adapts a justify.Pipeline to RunExecutor, deserializing
// each claimed run's options, driving justify_project to completion, and
// serializing the terminal result back onto the run row (SPEC_FULL.md §"AMBIENT STACK").
type PipelineExecutor struct {
	Pipeline    *justify.Pipeline
	Broadcaster *events.Broadcaster // optional; nil disables progress fan-out
}

// NewPipelineExecutor builds a PipelineExecutor over p. b may be nil, in
// which case runs execute without emitting progress events anywhere.
func NewPipelineExecutor(p *justify.Pipeline, b *events.Broadcaster) *PipelineExecutor {
	return &PipelineExecutor{Pipeline: p, Broadcaster: b}
}

// Execute runs the full pipeline for one justify_runs row.
func (e *PipelineExecutor) Execute(ctx context.Context, run *JustifyRun) *ExecutionResult {
	opts := justify.DefaultOptions()
	if len(run.OptionsJSON) > 0 {
		if err := json.Unmarshal(run.OptionsJSON, &opts); err != nil {
			return &ExecutionResult{Status: RunStatusFailed, Error: fmt.Errorf("decoding run options: %w", err)}
		}
	}

	runID := run.ID
	if runID == "" {
		runID = uuid.NewString()
	}

	if e.Broadcaster != nil {
		opts.OnProgress = e.Broadcaster.OnProgress(runID)
		defer e.Broadcaster.Forget(runID)
	}

	result, err := e.Pipeline.JustifyProject(ctx, runID, opts)
	if err != nil {
		return &ExecutionResult{Status: RunStatusFailed, Error: err}
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return &ExecutionResult{Status: RunStatusFailed, Error: fmt.Errorf("encoding run result: %w", err)}
	}

	status := RunStatusCompleted
	if len(result.Failed) > 0 && len(result.Justified) == 0 {
		status = RunStatusFailed
	}

	return &ExecutionResult{Status: status, ResultJSON: resultJSON}
}
