package storage

import "errors"

// Errors shared by every store implementation. The trade log and
// capital series are append-only; writes never update in place.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an
	// existing trade ID, capital point, or score snapshot.
	ErrDuplicateKey = errors.New("duplicate key: store is append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
