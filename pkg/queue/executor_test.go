package queue_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-labs/justify/pkg/batcher"
	"github.com/codegraph-labs/justify/pkg/graph"
	"github.com/codegraph-labs/justify/pkg/graphstore"
	"github.com/codegraph-labs/justify/pkg/justify"
	"github.com/codegraph-labs/justify/pkg/llmtransport"
	"github.com/codegraph-labs/justify/pkg/queue"
)

type passthroughRedactor struct{}

func (passthroughRedactor) Mask(text string) string { return text }

// TestPipelineExecutor_Execute verifies that a claimed JustifyRun's
// OptionsJSON is decoded, the pipeline runs over every seeded entity, and
// the terminal result serializes back onto ExecutionResult.ResultJSON.
func TestPipelineExecutor_Execute(t *testing.T) {
	adapter := graphstore.NewMemoryAdapter()
	entity := graph.Entity{ID: "fn-a", Name: "doThing", Kind: graph.KindFunction, FilePath: "src/a.ts", StartLine: 1, EndLine: 10}
	adapter.SeedEntities(entity)

	fake := llmtransport.NewFakeClient()
	fake.Ready = false // exercise the code-analysis fallback, no network calls

	p := justify.New(adapter, fake, passthroughRedactor{}, justify.NewMetrics(prometheus.NewRegistry()), batcher.DefaultModelDescriptor, 1)
	executor := queue.NewPipelineExecutor(p, nil)

	opts := justify.DefaultOptions()
	opts.MinConfidence = 0.0
	optionsJSON, err := json.Marshal(opts)
	require.NoError(t, err)

	run := &queue.JustifyRun{ID: "run-exec-1", ProjectRoot: "/repo", OptionsJSON: optionsJSON}
	result := executor.Execute(context.Background(), run)

	require.Equal(t, queue.RunStatusCompleted, result.Status)
	require.NoError(t, result.Error)
	require.NotEmpty(t, result.ResultJSON)

	var decoded justify.Result
	require.NoError(t, json.Unmarshal(result.ResultJSON, &decoded))
	require.Len(t, decoded.Justified, 1)
}

// TestPipelineExecutor_Execute_GeneratesRunIDWhenEmpty verifies the
// executor falls back to a generated run id rather than passing an empty
// string through to the pipeline (which is used as a provenance field).
func TestPipelineExecutor_Execute_GeneratesRunIDWhenEmpty(t *testing.T) {
	adapter := graphstore.NewMemoryAdapter()
	entity := graph.Entity{ID: "fn-b", Name: "doOther", Kind: graph.KindFunction, FilePath: "src/b.ts", StartLine: 1, EndLine: 5}
	adapter.SeedEntities(entity)

	fake := llmtransport.NewFakeClient()
	fake.Ready = false

	p := justify.New(adapter, fake, passthroughRedactor{}, justify.NewMetrics(prometheus.NewRegistry()), batcher.DefaultModelDescriptor, 1)
	executor := queue.NewPipelineExecutor(p, nil)

	run := &queue.JustifyRun{ID: "", ProjectRoot: "/repo"}
	result := executor.Execute(context.Background(), run)

	require.Equal(t, queue.RunStatusCompleted, result.Status)
	require.NoError(t, result.Error)
}

// TestPipelineExecutor_Execute_MalformedOptionsFails verifies an
// undecodeable options blob produces a failed ExecutionResult rather than
// a panic.
func TestPipelineExecutor_Execute_MalformedOptionsFails(t *testing.T) {
	adapter := graphstore.NewMemoryAdapter()
	fake := llmtransport.NewFakeClient()
	p := justify.New(adapter, fake, passthroughRedactor{}, justify.NewMetrics(prometheus.NewRegistry()), batcher.DefaultModelDescriptor, 1)
	executor := queue.NewPipelineExecutor(p, nil)

	run := &queue.JustifyRun{ID: "run-bad-opts", OptionsJSON: []byte("{not json")}
	result := executor.Execute(context.Background(), run)

	require.Equal(t, queue.RunStatusFailed, result.Status)
	require.Error(t, result.Error)
}
