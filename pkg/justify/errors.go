package justify

import "errors"

// ErrEntityNotFound is returned (wrapped) by every operation that looks up
// an entity or justification by id and finds none (spec.md §7: typed
// sentinels, never string matching on error text).
var ErrEntityNotFound = errors.New("justify: entity_not_found")
