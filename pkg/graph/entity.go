// Package graph defines the shared data model for the justification
// pipeline: entities, relationships, justification records, dependency
// nodes, processing levels, and batches.
package graph

import "time"

// EntityKind is the sum type of nameable code units the pipeline can justify.
type EntityKind string

const (
	KindFunction   EntityKind = "function"
	KindMethod     EntityKind = "method"
	KindClass      EntityKind = "class"
	KindInterface  EntityKind = "interface"
	KindTypeAlias  EntityKind = "type_alias"
	KindVariable   EntityKind = "variable"
	KindFile       EntityKind = "file"
	KindModule     EntityKind = "module"
)

// Entity is a single nameable unit of code pulled from the upstream parser's
// graph. Entities are immutable from the pipeline's point of view.
type Entity struct {
	ID         string
	Name       string
	FilePath   string
	Kind       EntityKind
	Signature  string
	DocComment string
	Snippet    string

	// StartLine/EndLine are populated for span-shaped entities (function,
	// method, class, interface). Line is populated for single-line
	// entities (variable). A file/module entity carries neither.
	StartLine int
	EndLine   int
	Line      int
}

// LineCount is the derived width of the entity's source span, computed once
// during scheduling intake (see SPEC_FULL.md §3 SUPPLEMENTED) rather than
// re-derived by every triviality rule.
func (e Entity) LineCount() int {
	if e.Line > 0 {
		return 1
	}
	if e.EndLine >= e.StartLine && e.StartLine > 0 {
		return e.EndLine - e.StartLine + 1
	}
	return 0
}

// RelationshipKind enumerates the directed edge kinds the scheduler and
// context propagator read from the upstream graph.
type RelationshipKind string

const (
	RelCalls            RelationshipKind = "calls"
	RelImports          RelationshipKind = "imports"
	RelExtends          RelationshipKind = "extends"
	RelImplements       RelationshipKind = "implements"
	RelExtendsInterface RelationshipKind = "extends_interface"
	RelContains         RelationshipKind = "contains"
	RelHasMethod        RelationshipKind = "has_method"
)

// Relationship is a directed edge between two entity ids.
type Relationship struct {
	FromID string
	ToID   string
	Kind   RelationshipKind
}

// dependencyKinds are the relationship kinds that imply "the meaning of the
// source entity depends on the meaning of the target entity" per spec.md
// §4.2's graph construction rule.
var dependencyKinds = map[RelationshipKind]bool{
	RelCalls:            true,
	RelImports:          true,
	RelExtends:          true,
	RelImplements:       true,
	RelExtendsInterface: true,
}

// IsDependencyEdge reports whether a relationship of this kind should be
// treated as a scheduling dependency edge.
func IsDependencyEdge(kind RelationshipKind) bool {
	return dependencyKinds[kind]
}

// InferredFrom records the provenance of a justification record.
type InferredFrom string

const (
	InferredFromLLM        InferredFrom = "llm_inferred"
	InferredFromFileName   InferredFrom = "file_name"
	InferredFromUser       InferredFrom = "user_provided"
	InferredFromPropagated InferredFrom = "propagated"
)

// ConfidenceLevel buckets a confidence score per spec.md §3/§8 thresholds.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// ConfidenceLevelFor derives the bucket for a score using the spec's
// thresholds: <0.5 low, <0.8 medium, else high.
func ConfidenceLevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ClarificationQuestion is a single pending question attached to an
// uncertain justification.
type ClarificationQuestion struct {
	ID       string
	Text     string
	Category string
	Priority int
}

// Justification is the one-row-per-entity business justification record.
type Justification struct {
	// identity
	JustificationID string
	EntityID        string
	EntityKind      EntityKind
	Name            string
	FilePath        string

	// content
	PurposeSummary      string
	BusinessValue       string
	FeatureContext      string
	DetailedDescription string
	Tags                []string

	// provenance
	InferredFrom    InferredFrom
	EvidenceSources []string
	Reasoning       string

	// quality
	ConfidenceScore float64
	ConfidenceLevel ConfidenceLevel

	// hierarchy
	ParentJustificationID string
	HierarchyDepth        int

	// clarification
	ClarificationPending bool
	PendingQuestions     []ClarificationQuestion

	// timestamps/versioning
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int

	// RunID is the processing run that produced/last touched this record
	// (SPEC_FULL.md §3 SUPPLEMENTED field).
	RunID string
}

// Normalize sets ConfidenceLevel from ConfidenceScore so callers never need
// to keep the two in sync by hand.
func (j *Justification) Normalize() {
	j.ConfidenceLevel = ConfidenceLevelFor(j.ConfidenceScore)
}
