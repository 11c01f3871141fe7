package dao

import "errors"

// Common, reusable DAO errors. Sentinel variables allow callers to detect
// error conditions via errors.Is instead of brittle string comparisons.

var (
	// ErrNotFound is returned when the requested entity does not exist in
	// the underlying storage.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID indicates that the supplied ID/key is empty or otherwise
	// invalid.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = errors.New("dao: nil entity")

	// ErrStageConflict is returned by a compare-and-swap stage transition
	// when the stored stage no longer matches the expected one, typically
	// because a human decision and an orchestrator sweep raced for the same
	// request.
	ErrStageConflict = errors.New("dao: stage conflict")
)
