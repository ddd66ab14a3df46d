package justify

import (
	"context"
	"sort"
	"strings"

	"github.com/codegraph-labs/justify/pkg/graph"
	"github.com/codegraph-labs/justify/pkg/graphstore"
)

// maxDependencySummaries bounds how many dependency summaries are pulled
// into a single context, to bound prompt size.
const maxDependencySummaries = 8

// summaryMaxLen truncates a dependency/summary string for prompt economy.
const summaryMaxLen = 160

// DependencySummary is a short, truncated summary of an already-justified
// dependency (spec.md §4.6).
type DependencySummary struct {
	EntityID string
	Name     string
	Summary  string
}

// JustificationContext is the per-entity context C5 consumes to build a
// prompt (spec.md §4.6 build_context output shape).
type JustificationContext struct {
	Entity         graph.Entity
	ParentContext  *graph.Justification
	Siblings       []graph.Entity
	Dependencies   []DependencySummary
	Callers        []graph.Entity
	Callees        []graph.Entity
	ProjectContext *ProjectContext
}

// fileHierarchy is the reconstructed parent/child tree for one file,
// built from `contains` and `has_method` relationships (spec.md §4.6
// "Hierarchy per file").
type fileHierarchy struct {
	childrenOf map[string][]string // parent entity id -> child entity ids
	parentOf   map[string]string   // child entity id -> parent entity id
}

func buildFileHierarchy(entities []graph.Entity, relationships []graph.Relationship) fileHierarchy {
	h := fileHierarchy{
		childrenOf: make(map[string][]string),
		parentOf:   make(map[string]string),
	}
	present := make(map[string]bool, len(entities))
	for _, e := range entities {
		present[e.ID] = true
	}
	for _, r := range relationships {
		if r.Kind != graph.RelContains && r.Kind != graph.RelHasMethod {
			continue
		}
		if !present[r.FromID] || !present[r.ToID] {
			continue
		}
		h.childrenOf[r.FromID] = append(h.childrenOf[r.FromID], r.ToID)
		h.parentOf[r.ToID] = r.FromID
	}
	for parent := range h.childrenOf {
		sort.Strings(h.childrenOf[parent])
	}
	return h
}

// Siblings returns the children of the entity's parent, excluding the
// entity itself.
func (h fileHierarchy) siblings(entityID string) []string {
	parent, ok := h.parentOf[entityID]
	if !ok {
		return nil
	}
	var out []string
	for _, id := range h.childrenOf[parent] {
		if id != entityID {
			out = append(out, id)
		}
	}
	return out
}

// BuildContext assembles a JustificationContext for one entity (spec.md
// §4.6 build_context). Missing prerequisite justifications are silently
// omitted, never an error.
func BuildContext(
	ctx context.Context,
	adapter graphstore.Adapter,
	entity graph.Entity,
	hierarchy fileHierarchy,
	dependsOn []string,
	callers, callees []string,
	projectCtx *ProjectContext,
) (JustificationContext, error) {
	jc := JustificationContext{Entity: entity, ProjectContext: projectCtx}

	if parentID, ok := hierarchy.parentOf[entity.ID]; ok {
		if pj, found, err := adapter.GetJustification(ctx, parentID); err == nil && found {
			jc.ParentContext = &pj
		}
	}

	for _, sibID := range hierarchy.siblings(entity.ID) {
		if e, found, err := adapter.GetEntity(ctx, sibID); err == nil && found {
			jc.Siblings = append(jc.Siblings, e)
		}
	}

	if len(dependsOn) > 0 {
		justs, err := adapter.GetJustifications(ctx, dependsOn)
		if err == nil {
			for _, id := range dependsOn {
				j, ok := justs[id]
				if !ok {
					continue
				}
				jc.Dependencies = append(jc.Dependencies, DependencySummary{
					EntityID: id,
					Name:     j.Name,
					Summary:  truncate(j.PurposeSummary+" ("+j.FeatureContext+")", summaryMaxLen),
				})
				if len(jc.Dependencies) >= maxDependencySummaries {
					break
				}
			}
		}
	}

	for _, id := range callers {
		if e, found, err := adapter.GetEntity(ctx, id); err == nil && found {
			jc.Callers = append(jc.Callers, e)
		}
	}
	for _, id := range callees {
		if e, found, err := adapter.GetEntity(ctx, id); err == nil && found {
			jc.Callees = append(jc.Callees, e)
		}
	}

	return jc, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
