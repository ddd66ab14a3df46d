// Package justify implements the Inference Orchestrator (C5), the Context
// Propagator (C6), and the pipeline's public surface: the composition
// root that wires the Graph Adapter (C1), Dependency Scheduler (C2),
// Triviality Filter (C3), and Token Batcher (C4) into `justify_entities`,
// `justify_file`, `justify_project`, and the retrieval/clarification/
// reporting operations of spec.md §6.
package justify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/codegraph-labs/justify/pkg/batcher"
	"github.com/codegraph-labs/justify/pkg/graph"
	"github.com/codegraph-labs/justify/pkg/graphstore"
	"github.com/codegraph-labs/justify/pkg/llmtransport"
	"github.com/codegraph-labs/justify/pkg/scheduler"
)

var allEntityKinds = []graph.EntityKind{
	graph.KindFunction, graph.KindMethod, graph.KindClass, graph.KindInterface,
	graph.KindTypeAlias, graph.KindVariable, graph.KindFile, graph.KindModule,
}

var allRelationshipKinds = []graph.RelationshipKind{
	graph.RelCalls, graph.RelImports, graph.RelExtends, graph.RelImplements,
	graph.RelExtendsInterface, graph.RelContains, graph.RelHasMethod,
}

// Pipeline is the public entry point over the justification core.
type Pipeline struct {
	Adapter      graphstore.Adapter
	Orchestrator *Orchestrator
	Budget       batcher.Budget
	ModelID      string
}

// New builds a Pipeline from its collaborators plus a model descriptor
// used to derive the token budget.
func New(adapter graphstore.Adapter, llm llmtransport.Client, redactor Redactor, metrics *Metrics, model batcher.ModelDescriptor, inFlightBatches int) *Pipeline {
	return &Pipeline{
		Adapter:      adapter,
		Orchestrator: NewOrchestrator(adapter, llm, redactor, metrics, inFlightBatches),
		Budget:       batcher.DeriveBudget(model, 0.8, batcher.EstimateTokens(len(systemPrompt)), 250, 25),
		ModelID:      model.ID,
	}
}

func (p *Pipeline) loadAllEntities(ctx context.Context) ([]graph.Entity, error) {
	var out []graph.Entity
	for _, kind := range allEntityKinds {
		es, err := p.Adapter.ListEntitiesByKind(ctx, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, es...)
	}
	return out, nil
}

func (p *Pipeline) loadAllRelationships(ctx context.Context) ([]graph.Relationship, error) {
	var out []graph.Relationship
	for _, kind := range allRelationshipKinds {
		rs, err := p.Adapter.GetRelationships(ctx, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

// JustifyProject runs the full pipeline over every known entity: schedule,
// then per level split trivial/non-trivial, infer, persist, and propagate
// (spec.md §2 control flow).
func (p *Pipeline) JustifyProject(ctx context.Context, runID string, opts Options) (*Result, error) {
	start := time.Now()
	entities, err := p.loadAllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}
	relationships, err := p.loadAllRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}
	return p.justifyEntitySet(ctx, entities, relationships, runID, opts, start)
}

// JustifyFile runs the pipeline over the entities rooted at a single file.
func (p *Pipeline) JustifyFile(ctx context.Context, path, runID string, opts Options) (*Result, error) {
	start := time.Now()
	entities, err := p.Adapter.GetByFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}
	relationships, err := p.loadAllRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}
	return p.justifyEntitySet(ctx, entities, relationships, runID, opts, start)
}

// JustifyEntities runs the pipeline over an explicit id list.
func (p *Pipeline) JustifyEntities(ctx context.Context, ids []string, runID string, opts Options) (*Result, error) {
	start := time.Now()
	if len(ids) == 0 {
		res := &Result{}
		res.finalize(0, time.Since(start).Milliseconds())
		return res, nil
	}

	var entities []graph.Entity
	for _, id := range ids {
		e, ok, err := p.Adapter.GetEntity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("justify: storage_error: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("justify: entity_not_found: %s: %w", id, ErrEntityNotFound)
		}
		entities = append(entities, e)
	}
	relationships, err := p.loadAllRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}
	return p.justifyEntitySet(ctx, entities, relationships, runID, opts, start)
}

func (p *Pipeline) justifyEntitySet(ctx context.Context, entities []graph.Entity, relationships []graph.Relationship, runID string, opts Options, start time.Time) (*Result, error) {
	if len(entities) == 0 {
		res := &Result{}
		res.finalize(0, time.Since(start).Milliseconds())
		return res, nil
	}

	nodes := scheduler.Build(entities, relationships)
	order := scheduler.Schedule(nodes)
	hierarchy := buildFileHierarchy(entities, relationships)
	entityByID := make(map[string]graph.Entity, len(entities))
	for _, e := range entities {
		entityByID[e.ID] = e
	}

	final := &Result{}
	totalSkipped := 0
	touchedFiles := make(map[string]bool)

	for _, level := range order.Levels {
		if ctx.Err() != nil {
			break
		}

		levelEntities := make([]graph.Entity, 0, len(level.EntityIDs))
		for _, id := range level.EntityIDs {
			levelEntities = append(levelEntities, entityByID[id])
		}

		opts.emit(ProgressEvent{Phase: PhaseBuildingContext, Current: 0, Total: len(levelEntities), Message: fmt.Sprintf("level %d", level.Level)})
		contexts := p.buildContexts(ctx, levelEntities, nodes, hierarchy, opts.ProjectContext)

		opts.emit(ProgressEvent{Phase: PhaseInferring, Current: 0, Total: len(levelEntities), Message: fmt.Sprintf("level %d", level.Level)})
		levelResult, err := p.Orchestrator.ProcessLevel(ctx, levelEntities, contexts, opts, p.Budget, runID)
		if levelResult != nil {
			final.Justified = append(final.Justified, levelResult.Justified...)
			final.Failed = append(final.Failed, levelResult.Failed...)
			final.NeedingClarification = append(final.NeedingClarification, levelResult.NeedingClarification...)
			totalSkipped += levelResult.Stats.Skipped
		}
		if err != nil {
			final.finalize(totalSkipped, time.Since(start).Milliseconds())
			return final, err
		}

		for _, e := range levelEntities {
			touchedFiles[e.FilePath] = true
		}

		if opts.PropagateContext {
			opts.emit(ProgressEvent{Phase: PhasePropagating, Total: len(touchedFiles)})
			// Propagation failures are non-fatal (spec.md §4.6: the
			// propagator never errors on missing prerequisites); a
			// storage hiccup here should not abort the run.
			if err := p.propagateTouchedFiles(ctx, touchedFiles, hierarchy); err != nil {
				slog.Warn("justify: propagation pass failed", "error", err)
			}
		}
	}

	opts.emit(ProgressEvent{Phase: PhaseStoring, Message: "run complete"})
	final.finalize(totalSkipped, time.Since(start).Milliseconds())
	return final, nil
}

func (p *Pipeline) buildContexts(ctx context.Context, entities []graph.Entity, nodes map[string]*graph.DependencyNode, hierarchy fileHierarchy, project *ProjectContext) map[string]JustificationContext {
	out := make(map[string]JustificationContext, len(entities))
	for _, e := range entities {
		var deps, callers, callees []string
		if n, ok := nodes[e.ID]; ok {
			for d := range n.DependsOn {
				deps = append(deps, d)
			}
			for d := range n.DependedBy {
				callers = append(callers, d)
			}
		}
		sort.Strings(deps)
		sort.Strings(callers)
		jc, _ := BuildContext(ctx, p.Adapter, e, hierarchy, deps, callers, callees, project)
		out[e.ID] = jc
	}
	return out
}

// propagateTouchedFiles runs top-down then bottom-up passes for every
// parent/child pair within each touched file (spec.md §4.6 pass ordering).
func (p *Pipeline) propagateTouchedFiles(ctx context.Context, touchedFiles map[string]bool, hierarchy fileHierarchy) error {
	for parentID, childIDs := range hierarchy.childrenOf {
		if len(childIDs) == 0 {
			continue
		}
		parentEntity, ok, err := p.Adapter.GetEntity(ctx, parentID)
		if err != nil || !ok || !touchedFiles[parentEntity.FilePath] {
			continue
		}
		if err := PropagateDown(ctx, p.Adapter, parentID, childIDs); err != nil {
			return err
		}
		if err := AggregateUp(ctx, p.Adapter, parentID, childIDs); err != nil {
			return err
		}
	}
	return nil
}

// RejustifyUncertain re-runs inference for every entity whose existing
// justification falls below opts.MinConfidence, forcing re-evaluation.
func (p *Pipeline) RejustifyUncertain(ctx context.Context, runID string, opts Options) (*Result, error) {
	entities, err := p.loadAllEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}

	var uncertainIDs []string
	for _, e := range entities {
		j, ok, err := p.Adapter.GetJustification(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("justify: storage_error: %w", err)
		}
		if ok && j.ConfidenceScore < opts.MinConfidence {
			uncertainIDs = append(uncertainIDs, e.ID)
		}
	}

	opts.Force = true
	return p.JustifyEntities(ctx, uncertainIDs, runID, opts)
}

// BuildContext is the public wrapper over the package-level context
// builder, loading the entity and its dependency graph fresh.
func (p *Pipeline) BuildContext(ctx context.Context, entityID string, project *ProjectContext) (JustificationContext, error) {
	e, ok, err := p.Adapter.GetEntity(ctx, entityID)
	if err != nil {
		return JustificationContext{}, fmt.Errorf("justify: storage_error: %w", err)
	}
	if !ok {
		return JustificationContext{}, fmt.Errorf("justify: entity_not_found: %s: %w", entityID, ErrEntityNotFound)
	}

	siblingsOf, err := p.Adapter.GetByFile(ctx, e.FilePath)
	if err != nil {
		return JustificationContext{}, fmt.Errorf("justify: storage_error: %w", err)
	}
	relationships, err := p.loadAllRelationships(ctx)
	if err != nil {
		return JustificationContext{}, fmt.Errorf("justify: storage_error: %w", err)
	}
	hierarchy := buildFileHierarchy(siblingsOf, relationships)

	nodes := scheduler.Build(siblingsOf, relationships)
	var deps, callers []string
	if n, ok := nodes[e.ID]; ok {
		for d := range n.DependsOn {
			deps = append(deps, d)
		}
		for d := range n.DependedBy {
			callers = append(callers, d)
		}
	}
	sort.Strings(deps)
	sort.Strings(callers)

	return BuildContext(ctx, p.Adapter, e, hierarchy, deps, callers, nil, project)
}

// PropagateContextDown runs top-down inheritance from parentID to its
// children (spec.md §6).
func (p *Pipeline) PropagateContextDown(ctx context.Context, parentID string) error {
	children, err := p.childrenOf(ctx, parentID)
	if err != nil {
		return err
	}
	return PropagateDown(ctx, p.Adapter, parentID, children)
}

// AggregateContextUp runs bottom-up aggregation from parentID's children.
func (p *Pipeline) AggregateContextUp(ctx context.Context, parentID string) error {
	children, err := p.childrenOf(ctx, parentID)
	if err != nil {
		return err
	}
	return AggregateUp(ctx, p.Adapter, parentID, children)
}

func (p *Pipeline) childrenOf(ctx context.Context, parentID string) ([]string, error) {
	parent, ok, err := p.Adapter.GetEntity(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("justify: entity_not_found: %s: %w", parentID, ErrEntityNotFound)
	}
	siblingsOf, err := p.Adapter.GetByFile(ctx, parent.FilePath)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}
	relationships, err := p.loadAllRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("justify: storage_error: %w", err)
	}
	hierarchy := buildFileHierarchy(siblingsOf, relationships)
	return hierarchy.childrenOf[parentID], nil
}
