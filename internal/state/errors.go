package state

import "errors"

var (
	// ErrNotFound is returned when a path has no object.
	ErrNotFound = errors.New("state: not found")

	// ErrInvalidID is returned for an empty or malformed path.
	ErrInvalidID = errors.New("state: invalid id")

	// ErrReadOnly is returned when the host writes a non-writable object.
	ErrReadOnly = errors.New("state: read-only")
)
