package graph

import "strings"

const justificationIDPrefix = "just-"

// NewJustificationID derives a justification id from its entity id. Using
// a deterministic derivation (rather than a random uuid) lets callers
// recover an ancestor's entity id from a ParentJustificationID without a
// dedicated reverse index, since the Graph Adapter is keyed by entity id
// everywhere else (spec.md §4.1).
func NewJustificationID(entityID string) string {
	return justificationIDPrefix + entityID
}

// EntityIDFromJustificationID reverses NewJustificationID.
func EntityIDFromJustificationID(justificationID string) (string, bool) {
	if !strings.HasPrefix(justificationID, justificationIDPrefix) {
		return "", false
	}
	return strings.TrimPrefix(justificationID, justificationIDPrefix), true
}
