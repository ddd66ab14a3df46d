package llmtransport

import "errors"

// ErrLLMUnavailable is the sentinel surfaced when the transport cannot
// currently serve a completion call (spec.md §7 llm_unavailable).
var ErrLLMUnavailable = errors.New("llmtransport: unavailable")

// unavailableError wraps a transport-level failure as ErrLLMUnavailable so
// callers can use errors.Is without string matching.
type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string { return "llmtransport: unavailable: " + e.err.Error() }
func (e *unavailableError) Unwrap() error { return e.err }
func (e *unavailableError) Is(target error) bool { return target == ErrLLMUnavailable }

// ErrUnavailable wraps err as an ErrLLMUnavailable-compatible error.
func ErrUnavailable(err error) error {
	if err == nil {
		return nil
	}
	return &unavailableError{err: err}
}
