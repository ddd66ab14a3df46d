// Package graphstore implements the Graph Adapter (C1): a thin, read-mostly
// view over entities, relationships, and persisted justifications, plus
// single/batch justification upsert. The adapter owns no business logic so
// the rest of the pipeline can be tested against an in-memory fake.
package graphstore

import (
	"context"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// Adapter is the narrow interface the pipeline consumes (spec.md §6 "Graph
// Adapter interface"). Reads are consistent within a single call but the
// adapter makes no cross-call guarantees; callers must tolerate concurrent
// updates by re-reading when needed. Missing records are returned as
// absence (nil / false / empty slice), never as an error.
type Adapter interface {
	// ListEntitiesByKind returns every known entity of the given kind.
	ListEntitiesByKind(ctx context.Context, kind graph.EntityKind) ([]graph.Entity, error)

	// GetEntity returns a single entity by id, or ok=false if unknown.
	GetEntity(ctx context.Context, id string) (graph.Entity, bool, error)

	// GetRelationships returns every relationship of the given kind.
	GetRelationships(ctx context.Context, kind graph.RelationshipKind) ([]graph.Relationship, error)

	// GetJustification returns the justification for one entity, or
	// ok=false if none has been written yet.
	GetJustification(ctx context.Context, entityID string) (graph.Justification, bool, error)

	// GetJustifications batch-loads justifications for the given ids. Ids
	// with no justification are simply absent from the returned map.
	GetJustifications(ctx context.Context, ids []string) (map[string]graph.Justification, error)

	// GetByFile returns every entity whose FilePath equals path.
	GetByFile(ctx context.Context, path string) ([]graph.Entity, error)

	// UpsertJustification creates or updates a justification record,
	// incrementing Version on every write (spec.md §9 open question b).
	UpsertJustification(ctx context.Context, j graph.Justification) error

	// DeleteJustification removes justification(s). Exactly one of
	// entityID or filePath must be non-empty: entityID deletes one
	// record, filePath deletes every justification under that file
	// (spec.md §3 "deleted only when the underlying file is deleted").
	DeleteJustification(ctx context.Context, entityID, filePath string) error

	// GetPendingClarifications returns up to limit justifications whose
	// ClarificationPending is true, oldest first.
	GetPendingClarifications(ctx context.Context, limit int) ([]graph.Justification, error)

	// TextSearch performs a full-text search over purpose_summary and
	// detailed_description, returning up to limit matches.
	TextSearch(ctx context.Context, query string, limit int) ([]graph.Justification, error)
}
