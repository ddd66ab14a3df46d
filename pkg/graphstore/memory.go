package graphstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// MemoryAdapter is an in-memory fake Adapter, required by spec.md §4.1 so
// the core pipeline can be tested without a database. Safe for concurrent
// use.
type MemoryAdapter struct {
	mu sync.RWMutex

	entities      map[string]graph.Entity
	relationships []graph.Relationship
	justifications map[string]graph.Justification
}

// NewMemoryAdapter returns an empty fake adapter. Seed it with
// SeedEntities/SeedRelationships before use.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		entities:       make(map[string]graph.Entity),
		justifications: make(map[string]graph.Justification),
	}
}

// SeedEntities loads entities into the fake store, as a test fixture would.
func (m *MemoryAdapter) SeedEntities(entities ...graph.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		m.entities[e.ID] = e
	}
}

// SeedRelationships loads relationships into the fake store.
func (m *MemoryAdapter) SeedRelationships(rels ...graph.Relationship) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationships = append(m.relationships, rels...)
}

func (m *MemoryAdapter) ListEntitiesByKind(_ context.Context, kind graph.EntityKind) ([]graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []graph.Entity
	for _, e := range m.entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) GetEntity(_ context.Context, id string) (graph.Entity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	return e, ok, nil
}

func (m *MemoryAdapter) GetRelationships(_ context.Context, kind graph.RelationshipKind) ([]graph.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []graph.Relationship
	for _, r := range m.relationships {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryAdapter) GetJustification(_ context.Context, entityID string) (graph.Justification, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.justifications[entityID]
	return j, ok, nil
}

func (m *MemoryAdapter) GetJustifications(_ context.Context, ids []string) (map[string]graph.Justification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]graph.Justification)
	for _, id := range ids {
		if j, ok := m.justifications[id]; ok {
			out[id] = j
		}
	}
	return out, nil
}

func (m *MemoryAdapter) GetByFile(_ context.Context, path string) ([]graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []graph.Entity
	for _, e := range m.entities {
		if e.FilePath == path {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) UpsertJustification(_ context.Context, j graph.Justification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.justifications[j.EntityID]; ok {
		j.CreatedAt = existing.CreatedAt
		j.Version = existing.Version + 1
	} else {
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		j.Version = 1
	}
	j.UpdatedAt = now
	j.Normalize()
	m.justifications[j.EntityID] = j
	return nil
}

func (m *MemoryAdapter) DeleteJustification(_ context.Context, entityID, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entityID != "" {
		delete(m.justifications, entityID)
		return nil
	}
	for id, j := range m.justifications {
		if j.FilePath == filePath {
			delete(m.justifications, id)
		}
	}
	return nil
}

func (m *MemoryAdapter) GetPendingClarifications(_ context.Context, limit int) ([]graph.Justification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []graph.Justification
	for _, j := range m.justifications {
		if j.ClarificationPending {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryAdapter) TextSearch(_ context.Context, query string, limit int) ([]graph.Justification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(query))
	var out []graph.Justification
	if q == "" {
		return out, nil
	}
	for _, j := range m.justifications {
		haystack := strings.ToLower(j.PurposeSummary + " " + j.DetailedDescription)
		if strings.Contains(haystack, q) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
