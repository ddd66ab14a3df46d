package justify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codegraph-labs/justify/pkg/batcher"
	"github.com/codegraph-labs/justify/pkg/graph"
	"github.com/codegraph-labs/justify/pkg/graphstore"
	"github.com/codegraph-labs/justify/pkg/llmtransport"
	"github.com/codegraph-labs/justify/pkg/triviality"
)

// Redactor is the narrow interface the orchestrator uses to mask
// secret-shaped substrings out of prompts before they reach the LLM
// transport. pkg/masking.Service satisfies this.
type Redactor interface {
	Mask(text string) string
}

// maxEntityRetries bounds the per-entity retry fallback (spec.md §4.5).
const maxEntityRetries = 2

// storageRetryBackoff is the base backoff for storage-error retries
// during persistence (spec.md §4.5/§7: "retried with exponential
// backoff a small bounded number of times").
const storageRetryBackoff = 50 * time.Millisecond

// storageRetryAttempts bounds storage-error retries during persistence.
const storageRetryAttempts = 3

// Orchestrator drives batched inference to completion (C5).
type Orchestrator struct {
	Adapter          graphstore.Adapter
	LLM              llmtransport.Client
	Redactor         Redactor
	Metrics          *Metrics
	InFlightBatches  int
}

// NewOrchestrator builds an orchestrator. inFlightBatches bounds
// concurrent batch dispatch within a level (spec.md §5); 1 means strictly
// sequential.
func NewOrchestrator(adapter graphstore.Adapter, llm llmtransport.Client, redactor Redactor, metrics *Metrics, inFlightBatches int) *Orchestrator {
	if inFlightBatches < 1 {
		inFlightBatches = 1
	}
	return &Orchestrator{Adapter: adapter, LLM: llm, Redactor: redactor, Metrics: metrics, InFlightBatches: inFlightBatches}
}

// entityResponse mirrors the JSON contract of spec.md §4.5.
type entityResponse struct {
	PurposeSummary         string   `json:"purposeSummary"`
	BusinessValue          string   `json:"businessValue"`
	FeatureContext         string   `json:"featureContext"`
	DetailedDescription    string   `json:"detailedDescription"`
	Tags                   []string `json:"tags"`
	ConfidenceScore        float64  `json:"confidenceScore"`
	Reasoning              string   `json:"reasoning"`
	NeedsClarification     bool     `json:"needsClarification"`
	ClarificationQuestions []string `json:"clarificationQuestions"`
}

// ProcessLevel runs the per-entity flow (spec.md §4.5 steps 1-3) for every
// entity in one scheduler level, splitting into trivial (written
// immediately) and non-trivial (packed and sent to the LLM). It returns
// the accumulated Result for the level; it never aborts the run on a
// per-entity failure.
func (o *Orchestrator) ProcessLevel(
	ctx context.Context,
	entities []graph.Entity,
	contexts map[string]JustificationContext,
	opts Options,
	budget batcher.Budget,
	runID string,
) (*Result, error) {
	result := &Result{}
	skipped := 0

	var nonTrivial []graph.Entity
	for _, e := range entities {
		if ctx.Err() != nil {
			break
		}

		if !opts.Force {
			if existing, ok, err := o.Adapter.GetJustification(ctx, e.ID); err == nil && ok && existing.ConfidenceScore >= opts.MinConfidence {
				skipped++
				continue
			}
		}

		triv := triviality.Evaluate(e)
		if triv.IsTrivial {
			j := *triv.Default
			j.RunID = runID
			if err := o.persistWithRetry(ctx, j); err != nil {
				result.recordFailure(e.ID, err)
				if o.Metrics != nil {
					o.Metrics.EntitiesFailed.Inc()
				}
				continue
			}
			result.recordSuccess(j)
			if o.Metrics != nil {
				o.Metrics.TrivialWritten.Inc()
			}
			continue
		}

		if opts.SkipLLM {
			j := codeAnalysisFallback(e)
			j.RunID = runID
			if err := o.persistWithRetry(ctx, j); err != nil {
				result.recordFailure(e.ID, err)
				if o.Metrics != nil {
					o.Metrics.EntitiesFailed.Inc()
				}
				continue
			}
			result.recordSuccess(j)
			continue
		}

		nonTrivial = append(nonTrivial, e)
	}

	if len(nonTrivial) == 0 {
		result.finalize(skipped, 0)
		return result, nil
	}

	packed := batcher.Pack(nonTrivial, budget, estimateSystemPromptTokens())
	if o.Metrics != nil {
		o.Metrics.BatchesPacked.Add(float64(len(packed.Batches)))
	}
	if err := o.runBatches(ctx, packed.Batches, contexts, opts, runID, result); err != nil {
		return result, err
	}

	result.finalize(skipped, 0)
	return result, nil
}

func estimateSystemPromptTokens() int {
	return batcher.EstimateTokens(len(systemPrompt))
}

// runBatches dispatches each batch, bounded by InFlightBatches independent
// concurrent calls (spec.md §5), joining before propagation.
func (o *Orchestrator) runBatches(ctx context.Context, batches []graph.Batch, contexts map[string]JustificationContext, opts Options, runID string, result *Result) error {
	type batchOutcome struct {
		justs []graph.Justification
		fails []FailedEntity
	}
	outcomes := make([]batchOutcome, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.InFlightBatches)

	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			justs, fails := o.runSingleBatch(gctx, batch, contexts, opts, runID)
			outcomes[i] = batchOutcome{justs: justs, fails: fails}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, outcome := range outcomes {
		for _, j := range outcome.justs {
			result.recordSuccess(j)
		}
		for _, f := range outcome.fails {
			result.Failed = append(result.Failed, f)
		}
		if o.Metrics != nil && len(outcome.fails) > 0 {
			o.Metrics.EntitiesFailed.Add(float64(len(outcome.fails)))
		}
	}
	return nil
}

func (o *Orchestrator) runSingleBatch(ctx context.Context, batch graph.Batch, contexts map[string]JustificationContext, opts Options, runID string) ([]graph.Justification, []FailedEntity) {
	if !o.LLM.IsReady(ctx) {
		return o.fallbackAll(ctx, batch.Entities, runID)
	}

	prompt := buildBatchPrompt(batch.Entities, contexts, opts.ProjectContext)
	if o.Redactor != nil {
		prompt = o.Redactor.Mask(prompt)
	}

	responses, err := o.callLLM(ctx, prompt, batch.ReservedOutputTokens, len(batch.Entities))
	if err != nil || len(responses) != len(batch.Entities) {
		if err != nil {
			slog.Warn("justify: batch call failed, falling back to per-entity retry", "error", err)
		} else {
			slog.Warn("justify: batch response count mismatch, falling back to per-entity retry",
				"want", len(batch.Entities), "got", len(responses))
		}
		return o.retryPerEntity(ctx, batch.Entities, contexts, opts, runID)
	}

	var justs []graph.Justification
	var fails []FailedEntity
	for i, e := range batch.Entities {
		j := toJustification(e, responses[i], runID, contexts[e.ID])
		if err := o.persistWithRetry(ctx, j); err != nil {
			fails = append(fails, FailedEntity{EntityID: e.ID, Error: err.Error()})
			continue
		}
		justs = append(justs, j)
	}
	if o.Metrics != nil {
		o.Metrics.LLMCallsTotal.Inc()
		o.Metrics.EntitiesJustified.Add(float64(len(justs)))
	}
	return justs, fails
}

func (o *Orchestrator) callLLM(ctx context.Context, prompt string, maxTokens, expectedCount int) ([]entityResponse, error) {
	resp, err := o.LLM.Complete(ctx, llmtransport.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    maxTokens,
		Temperature:  0.2,
		JSONSchema:   &llmtransport.JSONSchema{Name: "justifications", Schema: responseJSONSchema, Strict: true},
	})
	if err != nil {
		if o.Metrics != nil {
			o.Metrics.LLMCallsFailed.Inc()
		}
		return nil, err
	}

	var responses []entityResponse
	if err := json.Unmarshal([]byte(resp.Text), &responses); err != nil {
		if o.Metrics != nil {
			o.Metrics.LLMParseErrors.Inc()
		}
		return nil, fmt.Errorf("justify: llm_parse_error: %w", err)
	}
	return responses, nil
}

// retryPerEntity falls back to single-entity prompts, up to
// maxEntityRetries attempts each, then to code-analysis inference.
func (o *Orchestrator) retryPerEntity(ctx context.Context, entities []graph.Entity, contexts map[string]JustificationContext, opts Options, runID string) ([]graph.Justification, []FailedEntity) {
	var justs []graph.Justification
	var fails []FailedEntity

	for _, e := range entities {
		j, err := o.justifyOneWithRetry(ctx, e, contexts, opts, runID)
		if err != nil {
			fails = append(fails, FailedEntity{EntityID: e.ID, Error: err.Error()})
			continue
		}
		if err := o.persistWithRetry(ctx, j); err != nil {
			fails = append(fails, FailedEntity{EntityID: e.ID, Error: err.Error()})
			continue
		}
		justs = append(justs, j)
	}
	return justs, fails
}

func (o *Orchestrator) justifyOneWithRetry(ctx context.Context, e graph.Entity, contexts map[string]JustificationContext, opts Options, runID string) (graph.Justification, error) {
	prompt := buildBatchPrompt([]graph.Entity{e}, contexts, opts.ProjectContext)
	if o.Redactor != nil {
		prompt = o.Redactor.Mask(prompt)
	}

	var lastErr error
	for attempt := 0; attempt < maxEntityRetries; attempt++ {
		if !o.LLM.IsReady(ctx) {
			break
		}
		responses, err := o.callLLM(ctx, prompt, 512, 1)
		if err != nil {
			lastErr = err
			continue
		}
		if len(responses) != 1 {
			lastErr = fmt.Errorf("justify: llm_parse_error: expected 1 response, got %d", len(responses))
			continue
		}
		return toJustification(e, responses[0], runID, contexts[e.ID]), nil
	}

	if lastErr == nil {
		lastErr = llmtransport.ErrLLMUnavailable
	}
	slog.Warn("justify: per-entity retry exhausted, falling back to code analysis", "entity", e.ID, "error", lastErr)
	j := codeAnalysisFallback(e)
	j.RunID = runID
	return j, nil
}

func (o *Orchestrator) fallbackAll(ctx context.Context, entities []graph.Entity, runID string) ([]graph.Justification, []FailedEntity) {
	var justs []graph.Justification
	var fails []FailedEntity
	for _, e := range entities {
		j := codeAnalysisFallback(e)
		j.RunID = runID
		if err := o.persistWithRetry(ctx, j); err != nil {
			fails = append(fails, FailedEntity{EntityID: e.ID, Error: err.Error()})
			continue
		}
		justs = append(justs, j)
	}
	return justs, fails
}

func toJustification(e graph.Entity, resp entityResponse, runID string, jc JustificationContext) graph.Justification {
	var questions []graph.ClarificationQuestion
	for i, q := range resp.ClarificationQuestions {
		questions = append(questions, graph.ClarificationQuestion{
			ID:       fmt.Sprintf("%s-q%d", e.ID, i),
			Text:     q,
			Category: "general",
			Priority: i,
		})
	}

	depth := 0
	parentID := ""
	if jc.ParentContext != nil {
		parentID = jc.ParentContext.JustificationID
		depth = jc.ParentContext.HierarchyDepth + 1
	}

	evidence := []string{e.FilePath}
	for _, d := range jc.Dependencies {
		evidence = append(evidence, d.EntityID)
	}

	j := graph.Justification{
		JustificationID:       graph.NewJustificationID(e.ID),
		EntityID:              e.ID,
		EntityKind:            e.Kind,
		Name:                  e.Name,
		FilePath:              e.FilePath,
		PurposeSummary:        resp.PurposeSummary,
		BusinessValue:         resp.BusinessValue,
		FeatureContext:        resp.FeatureContext,
		DetailedDescription:   resp.DetailedDescription,
		Tags:                  resp.Tags,
		InferredFrom:          graph.InferredFromLLM,
		EvidenceSources:       evidence,
		Reasoning:             resp.Reasoning,
		ConfidenceScore:       resp.ConfidenceScore,
		ParentJustificationID: parentID,
		HierarchyDepth:        depth,
		ClarificationPending:  resp.NeedsClarification,
		PendingQuestions:      questions,
		RunID:                 runID,
	}
	j.Normalize()
	return j
}

// persistWithRetry upserts with a small bounded exponential backoff on
// storage errors (spec.md §4.5/§7).
func (o *Orchestrator) persistWithRetry(ctx context.Context, j graph.Justification) error {
	var err error
	backoff := storageRetryBackoff
	for attempt := 0; attempt < storageRetryAttempts; attempt++ {
		err = o.Adapter.UpsertJustification(ctx, j)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("justify: storage_error after retries: %w", err)
}
