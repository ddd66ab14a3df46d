package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-labs/justify/pkg/api"
	"github.com/codegraph-labs/justify/pkg/batcher"
	"github.com/codegraph-labs/justify/pkg/config"
	"github.com/codegraph-labs/justify/pkg/events"
	"github.com/codegraph-labs/justify/pkg/graph"
	"github.com/codegraph-labs/justify/pkg/graphstore"
	"github.com/codegraph-labs/justify/pkg/justify"
	"github.com/codegraph-labs/justify/pkg/queue"
	testutil "github.com/codegraph-labs/justify/test/util"
)

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, run *queue.JustifyRun) *queue.ExecutionResult {
	return &queue.ExecutionResult{Status: queue.RunStatusCompleted}
}

func newTestServer(t *testing.T) (*api.Server, *graphstore.PostgresAdapter, *events.Broadcaster) {
	t.Helper()
	adapter, db := testutil.SetupTestAdapter(t)

	registry := prometheus.NewRegistry()
	metrics := justify.NewMetrics(registry)
	pipeline := justify.New(adapter, nil, nil, metrics, batcher.DefaultModelDescriptor, 1)

	cfg := &config.Config{LLMProviderRegistry: config.NewLLMProviderRegistry(nil)}
	pool := queue.NewWorkerPool("test-pod", db, &config.QueueConfig{WorkerCount: 1}, noopExecutor{})
	broadcaster := events.NewBroadcaster()

	return api.NewServer(cfg, db, pipeline, pool, broadcaster, registry), adapter, broadcaster
}

func doRequest(t *testing.T, s *api.Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_CreateAndGetRun(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/runs", api.CreateRunRequest{ProjectRoot: "/repo"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created api.CreateRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.RunID)
	require.Equal(t, "pending", created.Status)

	rec = doRequest(t, s, http.MethodGet, "/runs/"+created.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var run api.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, created.RunID, run.ID)
	require.Equal(t, "pending", run.Status)
}

func TestServer_GetRun_NotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/runs/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CancelPendingRun(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/runs", api.CreateRunRequest{ProjectRoot: "/repo"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created api.CreateRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, s, http.MethodPost, "/runs/"+created.RunID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/runs/"+created.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run api.RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.Equal(t, "cancelled", run.Status)
}

func TestServer_CreateRun_MissingProjectRoot(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/runs", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_EntityJustification(t *testing.T) {
	s, adapter, _ := newTestServer(t)
	ctx := context.Background()

	j := graph.Justification{
		JustificationID: graph.NewJustificationID("fn-a"),
		EntityID:        "fn-a",
		EntityKind:      graph.KindFunction,
		FilePath:        "src/a.ts",
		PurposeSummary:  "Processes a refund.",
		ConfidenceScore: 0.9,
	}
	j.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, j))

	rec := doRequest(t, s, http.MethodGet, "/entities/fn-a/justification", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got graph.Justification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Processes a refund.", got.PurposeSummary)
}

func TestServer_EntityJustification_NotFound(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/entities/missing/justification", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Search(t *testing.T) {
	s, adapter, _ := newTestServer(t)
	ctx := context.Background()

	j := graph.Justification{
		JustificationID: graph.NewJustificationID("fn-b"),
		EntityID:        "fn-b",
		EntityKind:      graph.KindFunction,
		FilePath:        "src/b.ts",
		PurposeSummary:  "Validates a coupon code against the promotions table.",
	}
	j.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, j))

	rec := doRequest(t, s, http.MethodGet, "/search?q=coupon", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
}

func TestServer_Search_MissingQuery(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/search", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ClarificationsListAndAnswer(t *testing.T) {
	s, adapter, _ := newTestServer(t)
	ctx := context.Background()

	j := graph.Justification{
		JustificationID:      graph.NewJustificationID("fn-c"),
		EntityID:             "fn-c",
		EntityKind:           graph.KindFunction,
		FilePath:             "src/c.ts",
		PurposeSummary:       "Schedules a retry.",
		ClarificationPending: true,
		PendingQuestions:     []graph.ClarificationQuestion{{ID: "q1", Text: "Which feature owns this?", Category: "feature"}},
	}
	j.Normalize()
	require.NoError(t, adapter.UpsertJustification(ctx, j))

	rec := doRequest(t, s, http.MethodGet, "/clarifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	pending, ok := body["clarifications"].([]any)
	require.True(t, ok)
	require.Len(t, pending, 1)

	rec = doRequest(t, s, http.MethodPost, "/clarifications/fn-c/answer", api.AnswerClarificationRequest{
		Answers: map[string]string{"q1": "Billing feature"},
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	reloaded, ok2, err := adapter.GetJustification(ctx, "fn-c")
	require.NoError(t, err)
	require.True(t, ok2)
	require.False(t, reloaded.ClarificationPending)
}

func TestServer_AnswerClarification_UnknownEntity(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/clarifications/missing/answer", api.AnswerClarificationRequest{
		Answers: map[string]string{"q1": "x"},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RunProgress(t *testing.T) {
	s, _, broadcaster := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/runs", api.CreateRunRequest{ProjectRoot: "/repo"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var created api.CreateRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, s, http.MethodGet, "/runs/"+created.RunID+"/progress", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	broadcaster.OnProgress(created.RunID)(justify.ProgressEvent{
		Phase: justify.PhaseInferring, Current: 2, Total: 5, Message: "level 1",
	})

	rec = doRequest(t, s, http.MethodGet, "/runs/"+created.RunID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var progress api.ProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	require.Equal(t, string(justify.PhaseInferring), progress.Phase)
	require.Equal(t, 2, progress.Current)
}

func TestServer_Healthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body.Status)
	require.NotNil(t, body.Database)
}

func TestServer_Metrics(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "justify_entities_justified_total")
}
