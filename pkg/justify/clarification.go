package justify

import (
	"context"
	"fmt"
	"strings"

	"github.com/codegraph-labs/justify/pkg/graph"
)

// GetNextClarificationBatch returns up to limit justifications awaiting a
// clarification answer, oldest first (spec.md §6 "get_next_clarification_batch").
func (p *Pipeline) GetNextClarificationBatch(ctx context.Context, limit int) ([]graph.Justification, error) {
	if limit <= 0 {
		limit = 10
	}
	return p.Adapter.GetPendingClarifications(ctx, limit)
}

// ApplyClarificationAnswers records an answer per pending question id and
// clears ClarificationPending once every question has an answer on file
// (spec.md §6 "apply_clarification_answers(map)").
func (p *Pipeline) ApplyClarificationAnswers(ctx context.Context, entityID string, answers map[string]string) error {
	j, ok, err := p.Adapter.GetJustification(ctx, entityID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("justify: entity_not_found: %s: %w", entityID, ErrEntityNotFound)
	}

	var unanswered []graph.ClarificationQuestion
	var notes []string
	for _, q := range j.PendingQuestions {
		if answer, ok := answers[q.ID]; ok && strings.TrimSpace(answer) != "" {
			notes = append(notes, fmt.Sprintf("%s: %s", q.Text, answer))
			continue
		}
		unanswered = append(unanswered, q)
	}

	if len(notes) > 0 {
		j.DetailedDescription = strings.TrimSpace(j.DetailedDescription + "\n\nClarifications:\n" + strings.Join(notes, "\n"))
	}
	j.PendingQuestions = unanswered
	j.ClarificationPending = len(unanswered) > 0
	j.Normalize()
	return p.Adapter.UpsertJustification(ctx, j)
}

// SkipClarification clears a pending clarification without recording an
// answer (spec.md §6 "skip_clarification(id)").
func (p *Pipeline) SkipClarification(ctx context.Context, entityID string) error {
	j, ok, err := p.Adapter.GetJustification(ctx, entityID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("justify: entity_not_found: %s: %w", entityID, ErrEntityNotFound)
	}
	j.ClarificationPending = false
	j.PendingQuestions = nil
	j.Normalize()
	return p.Adapter.UpsertJustification(ctx, j)
}

// UserJustificationInput is the caller-supplied override for
// SetUserJustification.
type UserJustificationInput struct {
	PurposeSummary string
	BusinessValue  string
	FeatureContext string
	Tags           []string
}

// SetUserJustification replaces an entity's justification with a
// user-authored one at full confidence, clearing any pending clarification
// (spec.md §6 "set_user_justification(id, input)").
func (p *Pipeline) SetUserJustification(ctx context.Context, entityID string, input UserJustificationInput) error {
	e, ok, err := p.Adapter.GetEntity(ctx, entityID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("justify: entity_not_found: %s: %w", entityID, ErrEntityNotFound)
	}

	j := graph.Justification{
		JustificationID: graph.NewJustificationID(e.ID),
		EntityID:        e.ID,
		EntityKind:      e.Kind,
		Name:            e.Name,
		FilePath:        e.FilePath,
		PurposeSummary:  input.PurposeSummary,
		BusinessValue:   input.BusinessValue,
		FeatureContext:  input.FeatureContext,
		Tags:            input.Tags,
		InferredFrom:    graph.InferredFromUser,
		EvidenceSources: []string{e.FilePath},
		Reasoning:       "user_override",
		ConfidenceScore: 1.0,
	}
	j.Normalize()
	return p.Adapter.UpsertJustification(ctx, j)
}
