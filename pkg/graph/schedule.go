package graph

// DependencyNode is one node of the dependency graph the scheduler builds.
// Invariant: for every id in DependsOn(n), n.EntityID is in DependedBy(id).
type DependencyNode struct {
	EntityID   string
	Kind       EntityKind
	DependsOn  map[string]bool
	DependedBy map[string]bool
}

// NewDependencyNode allocates an empty node for the given entity.
func NewDependencyNode(entityID string, kind EntityKind) *DependencyNode {
	return &DependencyNode{
		EntityID:   entityID,
		Kind:       kind,
		DependsOn:  make(map[string]bool),
		DependedBy: make(map[string]bool),
	}
}

// ProcessingLevel is a set of entities that may be justified once every
// strictly-lower level has been justified.
type ProcessingLevel struct {
	Level     int
	EntityIDs []string
	IsCycle   bool
	CycleSize int
}

// ProcessingOrder is the scheduler's full output.
type ProcessingOrder struct {
	Levels          []ProcessingLevel
	TotalEntities   int
	CycleCount      int
	EntitiesInCycles int
}

// Stats are derived on demand per spec.md §4.2 ("statistics ... are
// derivable"), not stored on ProcessingOrder itself.
type Stats struct {
	LeafCount  int
	RootCount  int
	MaxDepth   int
	LevelSizes []int
}

// Stats computes leaf count (entities nothing depends on), root count
// (entities with no dependencies), max depth, and per-level sizes from the
// processing order and the original dependency nodes.
func (o *ProcessingOrder) Stats(nodes map[string]*DependencyNode) Stats {
	s := Stats{LevelSizes: make([]int, len(o.Levels))}
	for i, lvl := range o.Levels {
		s.LevelSizes[i] = len(lvl.EntityIDs)
	}
	if len(o.Levels) > 0 {
		s.MaxDepth = len(o.Levels) - 1
	}
	for id, n := range nodes {
		if len(n.DependsOn) == 0 {
			s.RootCount++
		}
		if len(n.DependedBy) == 0 {
			s.LeafCount++
		}
		_ = id
	}
	return s
}

// Batch is a group of entities packed for a single LLM call, constrained by
// both an input-token and an output-token budget.
type Batch struct {
	Entities            []Entity
	EstimatedInputTokens int
	ReservedOutputTokens int
	Index                int
	Oversized            bool
}

// LimiterKind names which constraint was the dominant limiter for a packing
// run, reported in BatchStats.
type LimiterKind string

const (
	LimiterInput   LimiterKind = "input"
	LimiterOutput  LimiterKind = "output"
	LimiterHardCap LimiterKind = "hard_cap"
	LimiterNone    LimiterKind = "none"
)

// BatchStats summarizes a single packing run.
type BatchStats struct {
	TotalBatches        int
	AverageBatchSize     float64
	InputUtilizationPct  float64
	OutputUtilizationPct float64
	DominantLimiter      LimiterKind
	OversizedEntityIDs   []string
}
