package graphstore

import "errors"

// Sentinel errors surfaced by Adapter implementations, following the
// teacher's pkg/services/errors.go pattern: package-level sentinels checked
// with errors.Is, never string-matched.
var (
	// ErrStorage wraps any adapter-level I/O failure (spec.md §7 storage_error).
	ErrStorage = errors.New("graphstore: storage error")
)

// StorageError wraps an underlying storage failure with the operation that
// triggered it, mirroring teacher's *StorageError{Op, Err} shape.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "graphstore: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrStorage) to match any *StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
