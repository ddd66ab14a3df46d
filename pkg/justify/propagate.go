package justify

import (
	"context"
	"sort"

	"github.com/codegraph-labs/justify/pkg/graph"
	"github.com/codegraph-labs/justify/pkg/graphstore"
)

// featureInheritConfidenceDelta is the small confidence boost applied to a
// child that inherits its parent's feature context (spec.md §4.6, "e.g.
// +0.05").
const featureInheritConfidenceDelta = 0.05

// maxInheritedTags caps how many of a parent's tags a child can inherit.
const maxInheritedTags = 5

// maxAggregatedPurposes bounds how many children's purpose summaries
// contribute to a parent's aggregated description ("top 5 by confidence").
const maxAggregatedPurposes = 5

// PropagateDown applies top-down inheritance from parent to every child
// whose feature_context is empty or "General": the child inherits the
// parent's feature_context, gains unique parent tags (capped), and its
// confidence is boosted by a small delta, clamped to <=1.0. Only runs when
// the parent is newer or higher-confidence than the child (spec.md §4.6).
func PropagateDown(ctx context.Context, adapter graphstore.Adapter, parentID string, childIDs []string) error {
	parent, ok, err := adapter.GetJustification(ctx, parentID)
	if err != nil || !ok {
		return err
	}

	for _, childID := range childIDs {
		child, ok, err := adapter.GetJustification(ctx, childID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !(parent.UpdatedAt.After(child.UpdatedAt) || parent.ConfidenceScore > child.ConfidenceScore) {
			continue
		}

		changed := false
		if child.FeatureContext == "" || child.FeatureContext == "General" {
			child.FeatureContext = parent.FeatureContext
			changed = true
		}

		existingTags := make(map[string]bool, len(child.Tags))
		for _, t := range child.Tags {
			existingTags[t] = true
		}
		added := 0
		for _, t := range parent.Tags {
			if added >= maxInheritedTags {
				break
			}
			if !existingTags[t] {
				child.Tags = append(child.Tags, t)
				existingTags[t] = true
				added++
				changed = true
			}
		}

		if changed {
			child.ConfidenceScore += featureInheritConfidenceDelta
			if child.ConfidenceScore > 1.0 {
				child.ConfidenceScore = 1.0
			}
			child.ParentJustificationID = parent.JustificationID
			if err := adapter.UpsertJustification(ctx, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// AggregateUp computes the parent's feature_context as the majority among
// its children's non-empty feature_context values (deterministic
// first-seen tiebreak), derives/augments detailed_description from the
// top children by confidence, and sets confidence to the mean of self and
// children (spec.md §4.6).
func AggregateUp(ctx context.Context, adapter graphstore.Adapter, parentID string, childIDs []string) error {
	parent, ok, err := adapter.GetJustification(ctx, parentID)
	if err != nil || !ok {
		return err
	}

	var children []graph.Justification
	for _, id := range childIDs {
		c, ok, err := adapter.GetJustification(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			children = append(children, c)
		}
	}
	if len(children) == 0 {
		return nil
	}

	parent.FeatureContext = majorityFeature(children)

	sorted := append([]graph.Justification(nil), children...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ConfidenceScore > sorted[j].ConfidenceScore })
	if len(sorted) > maxAggregatedPurposes {
		sorted = sorted[:maxAggregatedPurposes]
	}
	var purposes []string
	for _, c := range sorted {
		if c.PurposeSummary != "" {
			purposes = append(purposes, c.PurposeSummary)
		}
	}
	parent.DetailedDescription = joinSummaries(purposes)

	sum := parent.ConfidenceScore
	for _, c := range children {
		sum += c.ConfidenceScore
	}
	parent.ConfidenceScore = sum / float64(len(children)+1)

	return adapter.UpsertJustification(ctx, parent)
}

// majorityFeature returns the most common non-empty feature_context among
// children, breaking ties by first-seen order for determinism.
func majorityFeature(children []graph.Justification) string {
	counts := make(map[string]int)
	var order []string
	for _, c := range children {
		if c.FeatureContext == "" {
			continue
		}
		if _, seen := counts[c.FeatureContext]; !seen {
			order = append(order, c.FeatureContext)
		}
		counts[c.FeatureContext]++
	}
	best := ""
	bestCount := 0
	for _, f := range order {
		if counts[f] > bestCount {
			best = f
			bestCount = counts[f]
		}
	}
	return best
}

func joinSummaries(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
