package batcher_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegraph-labs/justify/pkg/batcher"
	"github.com/codegraph-labs/justify/pkg/graph"
)

// entityWithTokenCost builds an entity whose EstimateEntityInputTokens
// comes out to approximately wantTokens, via a padded snippet.
func entityWithTokenCost(id string, wantTokens int) graph.Entity {
	// cost = ceil(chars/3.5) + 25, so chars ~= (wantTokens-25)*3.5
	chars := (wantTokens - 25) * 3
	if chars < 0 {
		chars = 0
	}
	return graph.Entity{ID: id, Name: "n", Kind: graph.KindFunction, FilePath: "f.go", Snippet: strings.Repeat("x", chars)}
}

// Scenario 3 from spec.md §8: output-limited batching.
func TestPack_OutputLimited(t *testing.T) {
	model := batcher.ModelDescriptor{ContextWindow: 1000000, MaxOutputTokens: 2048}
	budget := batcher.DeriveBudget(model, 0, 0, 500, 25)
	require.Equal(t, 4, budget.MaxEntitiesPerBatchByOutput)

	var entities []graph.Entity
	for i := 0; i < 30; i++ {
		entities = append(entities, entityWithTokenCost(string(rune('a'+i)), 100))
	}

	result := batcher.Pack(entities, budget, 0)
	require.GreaterOrEqual(t, len(result.Batches), 2)
	require.Len(t, result.Batches[0].Entities, 4)
	require.Len(t, result.Batches[1].Entities, 4)
	require.Equal(t, graph.LimiterOutput, result.Stats.DominantLimiter)
}

func TestPack_OversizedEntityGetsOwnBatch(t *testing.T) {
	model := batcher.ModelDescriptor{ContextWindow: 2000, MaxOutputTokens: 1000}
	budget := batcher.DeriveBudget(model, 0, 0, 100, 25)

	small := entityWithTokenCost("small", 50)
	huge := graph.Entity{ID: "huge", Name: "n", Kind: graph.KindFunction, Snippet: strings.Repeat("x", 100000)}

	result := batcher.Pack([]graph.Entity{small, huge}, budget, 0)

	require.Contains(t, result.Stats.OversizedEntityIDs, "huge")
	var foundOversizedBatch bool
	for _, b := range result.Batches {
		if b.Oversized {
			foundOversizedBatch = true
			require.Len(t, b.Entities, 1)
			require.Equal(t, "huge", b.Entities[0].ID)
		}
	}
	require.True(t, foundOversizedBatch)
}

func TestPack_Deterministic(t *testing.T) {
	model := batcher.ModelDescriptor{ContextWindow: 50000, MaxOutputTokens: 2048}
	budget := batcher.DeriveBudget(model, 0.2, 200, 300, 10)

	var entities []graph.Entity
	for i := 0; i < 15; i++ {
		entities = append(entities, entityWithTokenCost(string(rune('a'+i)), 80))
	}

	r1 := batcher.Pack(entities, budget, 200)
	r2 := batcher.Pack(entities, budget, 200)
	require.Equal(t, r1.Batches, r2.Batches)
}

func TestDeriveBudget_MinInputFloor(t *testing.T) {
	model := batcher.ModelDescriptor{ContextWindow: 500, MaxOutputTokens: 100}
	budget := batcher.DeriveBudget(model, 0.8, 50, 100, 10)
	require.Equal(t, 1000, budget.MaxInput)
}
