package justify

import "github.com/codegraph-labs/justify/pkg/graph"

// FailedEntity pairs an entity id with the error that prevented
// justification (spec.md §7 "enumerated with {entity_id, error} pairs").
type FailedEntity struct {
	EntityID string
	Error    string
}

// ResultStats summarizes a run's outcome (spec.md §7).
type ResultStats struct {
	Succeeded            int
	Failed               int
	Skipped              int
	PendingClarification int
	AverageConfidence    float64
	DurationMs           int64
}

// Result is the public shape returned by every justify_* operation.
type Result struct {
	Justified           []graph.Justification
	Failed              []FailedEntity
	NeedingClarification []graph.Justification
	Stats               ResultStats
}

func (r *Result) recordSuccess(j graph.Justification) {
	r.Justified = append(r.Justified, j)
	if j.ClarificationPending {
		r.NeedingClarification = append(r.NeedingClarification, j)
	}
}

func (r *Result) recordFailure(entityID string, err error) {
	r.Failed = append(r.Failed, FailedEntity{EntityID: entityID, Error: err.Error()})
}

func (r *Result) finalize(skipped int, durationMs int64) {
	r.Stats.Succeeded = len(r.Justified)
	r.Stats.Failed = len(r.Failed)
	r.Stats.Skipped = skipped
	r.Stats.PendingClarification = len(r.NeedingClarification)
	r.Stats.DurationMs = durationMs

	if len(r.Justified) > 0 {
		sum := 0.0
		for _, j := range r.Justified {
			sum += j.ConfidenceScore
		}
		r.Stats.AverageConfidence = sum / float64(len(r.Justified))
	}
}
