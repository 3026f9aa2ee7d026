package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same identity already exists.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrCapacityReached is returned by conditional inserts when the pool is already full.
	ErrCapacityReached = errors.New("persistence: capacity reached")
)
