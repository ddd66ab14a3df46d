package api

import (
	"errors"

	"github.com/codegraph-labs/justify/pkg/justify"
)

// isEntityNotFound reports whether err wraps justify.ErrEntityNotFound
// (spec.md §7: typed sentinels, never string matching on error text).
func isEntityNotFound(err error) bool {
	return errors.Is(err, justify.ErrEntityNotFound)
}
