package justify

import (
	"context"
	"fmt"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// GetJustification retrieves one entity's justification.
func (p *Pipeline) GetJustification(ctx context.Context, entityID string) (graph.Justification, bool, error) {
	return p.Adapter.GetJustification(ctx, entityID)
}

// GetJustifications batch-retrieves justifications for a set of ids.
func (p *Pipeline) GetJustifications(ctx context.Context, ids []string) (map[string]graph.Justification, error) {
	return p.Adapter.GetJustifications(ctx, ids)
}

// GetFileJustifications returns every justification for entities under path.
func (p *Pipeline) GetFileJustifications(ctx context.Context, path string) ([]graph.Justification, error) {
	entities, err := p.Adapter.GetByFile(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []graph.Justification
	for _, e := range entities {
		if j, ok, err := p.Adapter.GetJustification(ctx, e.ID); err == nil && ok {
			out = append(out, j)
		}
	}
	return out, nil
}

// GetJustificationHierarchy walks parent_justification_id links from
// entityID up to the root, returning the chain root-first.
func (p *Pipeline) GetJustificationHierarchy(ctx context.Context, entityID string) ([]graph.Justification, error) {
	var chain []graph.Justification
	current, ok, err := p.Adapter.GetJustification(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("justify: entity_not_found: %s: %w", entityID, ErrEntityNotFound)
	}
	chain = append(chain, current)

	seen := map[string]bool{current.EntityID: true}
	for current.ParentJustificationID != "" {
		parent, ok, err := p.findByJustificationID(ctx, current.ParentJustificationID)
		if err != nil || !ok || seen[parent.EntityID] {
			break
		}
		chain = append([]graph.Justification{parent}, chain...)
		seen[parent.EntityID] = true
		current = parent
	}
	return chain, nil
}

func (p *Pipeline) findByJustificationID(ctx context.Context, justificationID string) (graph.Justification, bool, error) {
	// Best-effort reverse lookup: justification_id is generated as
	// "just-<entity_id>" by convention (see NewJustificationID), so the
	// entity id can be recovered directly without a dedicated index.
	entityID, ok := graph.EntityIDFromJustificationID(justificationID)
	if !ok {
		return graph.Justification{}, false, nil
	}
	return p.Adapter.GetJustification(ctx, entityID)
}

// SearchJustifications performs a full-text search over justification
// content.
func (p *Pipeline) SearchJustifications(ctx context.Context, query string, limit int) ([]graph.Justification, error) {
	return p.Adapter.TextSearch(ctx, query, limit)
}
