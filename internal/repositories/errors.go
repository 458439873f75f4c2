package repositories

import "errors"

var (
	// ErrNotFound is returned when no matching record exists, including
	// lookups that race with a concurrent delete.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write collides with an existing
	// record, such as a duplicate username or relationship pair.
	ErrConflict = errors.New("record conflict")
)
