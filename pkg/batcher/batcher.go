// Package batcher implements the Token Batcher (C4): dual-constraint
// greedy packing of entities into LLM batches, respecting both an
// input-token and an output-token budget.
//
// Per spec.md §9's design note, packing is implemented as an
// iterator-style state machine with fields {current, input_sum,
// cap_entities, cap_input, cap_output_entities}, emitting on any cap
// breach.
package batcher

import (
	"math"
	"sort"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// charsPerToken is the character-count heuristic from spec.md §4.4.
const charsPerToken = 3.5

// structuralMarkupTokens is the small constant added per entity for JSON/
// prompt structural markup.
const structuralMarkupTokens = 25

// maxDocCommentLines / maxSnippetLines bound how much of an entity's
// content contributes to its input-token estimate.
const maxSnippetLines = 10

// ModelDescriptor describes an LLM's capacity, consumed to derive budgets.
type ModelDescriptor struct {
	ID              string
	ContextWindow   int
	MaxOutputTokens int
	Provider        string
}

// DefaultModelDescriptor is the conservative fallback for unknown models
// (spec.md §6).
var DefaultModelDescriptor = ModelDescriptor{ContextWindow: 4096, MaxOutputTokens: 2048}

// Budget is the derived per-model packing budget (spec.md §4.4).
type Budget struct {
	ReservedOutput               int
	MaxInput                     int
	MaxEntitiesPerBatchByOutput  int
	HardCap                      int
	OutputTokensPerEntity        int
}

// DeriveBudget computes a Budget from a model descriptor, a safety margin
// (fraction of capacity to leave unused), the estimated system prompt
// token cost, the assumed output cost per entity, and a hard entity-count
// cap.
func DeriveBudget(model ModelDescriptor, safetyMargin float64, systemPromptTokens, outputTokensPerEntity, hardCap int) Budget {
	reservedOutput := int(math.Floor(float64(model.MaxOutputTokens) * (1 - safetyMargin)))

	maxInput := int(math.Floor(float64(model.ContextWindow-systemPromptTokens-reservedOutput) * (1 - safetyMargin)))
	if maxInput < 1000 {
		maxInput = 1000
	}

	maxEntitiesByOutput := 0
	if outputTokensPerEntity > 0 {
		maxEntitiesByOutput = int(math.Floor(float64(reservedOutput) / float64(outputTokensPerEntity)))
	}

	return Budget{
		ReservedOutput:              reservedOutput,
		MaxInput:                    maxInput,
		MaxEntitiesPerBatchByOutput:  maxEntitiesByOutput,
		HardCap:                     hardCap,
		OutputTokensPerEntity:        outputTokensPerEntity,
	}
}

// EstimateTokens applies the char/3.5 heuristic.
func EstimateTokens(chars int) int {
	return int(math.Ceil(float64(chars) / charsPerToken))
}

// EstimateEntityInputTokens sums the per-field character estimates from
// spec.md §4.4: name, kind, file path, signature, first line of doc
// comment, up to the first 10 lines of the snippet, plus structural
// markup.
func EstimateEntityInputTokens(e graph.Entity) int {
	chars := len(e.Name) + len(string(e.Kind)) + len(e.FilePath) + len(e.Signature)
	chars += len(firstLine(e.DocComment))
	chars += len(firstNLines(e.Snippet, maxSnippetLines))
	return EstimateTokens(chars) + structuralMarkupTokens
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func firstNLines(s string, n int) string {
	count := 0
	for i, r := range s {
		if r == '\n' {
			count++
			if count == n {
				return s[:i]
			}
		}
	}
	return s
}

// PackResult is the output of a single packing run.
type PackResult struct {
	Batches []graph.Batch
	Stats   graph.BatchStats
}

// Pack performs the greedy, sequential, order-preserving packing algorithm
// of spec.md §4.4. Oversized entities are emitted as their own flagged
// batch. Packing is deterministic: identical inputs and budget produce
// byte-identical output.
func Pack(entities []graph.Entity, budget Budget, systemPromptTokens int) PackResult {
	var batches []graph.Batch
	var oversized []string

	var current []graph.Entity
	inputSum := 0

	limiterCounts := map[graph.LimiterKind]int{}

	closeBatch := func() {
		if len(current) == 0 {
			return
		}
		batches = append(batches, graph.Batch{
			Entities:             current,
			EstimatedInputTokens: inputSum,
			ReservedOutputTokens: len(current) * budget.OutputTokensPerEntity,
			Index:                len(batches),
		})
		current = nil
		inputSum = 0
	}

	for _, e := range entities {
		cost := EstimateEntityInputTokens(e)

		if cost+systemPromptTokens > budget.MaxInput {
			// Step 1: this entity alone exceeds the input budget. Close
			// any open batch, then emit it alone, flagged oversized.
			closeBatch()
			batches = append(batches, graph.Batch{
				Entities:             []graph.Entity{e},
				EstimatedInputTokens: cost,
				ReservedOutputTokens: budget.OutputTokensPerEntity,
				Index:                len(batches),
				Oversized:            true,
			})
			oversized = append(oversized, e.ID)
			continue
		}

		wouldExceedInput := inputSum+cost+systemPromptTokens > budget.MaxInput
		wouldExceedOutputCount := budget.MaxEntitiesPerBatchByOutput > 0 && len(current)+1 > budget.MaxEntitiesPerBatchByOutput
		wouldExceedHardCap := budget.HardCap > 0 && len(current)+1 > budget.HardCap

		if len(current) > 0 && (wouldExceedInput || wouldExceedOutputCount || wouldExceedHardCap) {
			if wouldExceedHardCap {
				limiterCounts[graph.LimiterHardCap]++
			} else if wouldExceedOutputCount {
				limiterCounts[graph.LimiterOutput]++
			} else {
				limiterCounts[graph.LimiterInput]++
			}
			closeBatch()
		}

		current = append(current, e)
		inputSum += cost
	}
	closeBatch()

	return PackResult{
		Batches: batches,
		Stats:   computeStats(batches, oversized, limiterCounts, budget),
	}
}

func computeStats(batches []graph.Batch, oversized []string, limiterCounts map[graph.LimiterKind]int, budget Budget) graph.BatchStats {
	stats := graph.BatchStats{
		TotalBatches:       len(batches),
		OversizedEntityIDs: oversized,
		DominantLimiter:    graph.LimiterNone,
	}
	if len(batches) == 0 {
		return stats
	}

	totalEntities := 0
	inputSum := 0
	outputSum := 0
	for _, b := range batches {
		totalEntities += len(b.Entities)
		inputSum += b.EstimatedInputTokens
		outputSum += b.ReservedOutputTokens
	}
	stats.AverageBatchSize = float64(totalEntities) / float64(len(batches))

	if budget.MaxInput > 0 {
		stats.InputUtilizationPct = 100 * float64(inputSum) / (float64(budget.MaxInput) * float64(len(batches)))
	}
	if budget.ReservedOutput > 0 {
		stats.OutputUtilizationPct = 100 * float64(outputSum) / (float64(budget.ReservedOutput) * float64(len(batches)))
	}

	dominant := graph.LimiterKind("")
	max := -1
	// Deterministic tiebreak by iterating in a fixed order.
	order := []graph.LimiterKind{graph.LimiterHardCap, graph.LimiterOutput, graph.LimiterInput}
	for _, k := range order {
		if limiterCounts[k] > max {
			max = limiterCounts[k]
			dominant = k
		}
	}
	if max > 0 {
		stats.DominantLimiter = dominant
	}

	sort.Strings(stats.OversizedEntityIDs)
	return stats
}
