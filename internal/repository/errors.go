package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrVersionMismatch is returned by compare-and-swap writes whose
	// expected version no longer matches the stored row.
	ErrVersionMismatch = errors.New("version mismatch")
	// ErrSerialization marks a transaction aborted by the database that is
	// safe to run again.
	ErrSerialization = errors.New("serialization failure")
)

// Retryable reports whether the failed unit of work may be re-run as is.
func Retryable(err error) bool {
	return errors.Is(err, ErrVersionMismatch) || errors.Is(err, ErrSerialization)
}
