package services

import (
	"errors"

	"nightpress/internal/store"
)

// Caller-facing error taxonomy. None of these are retried by the engine.
var (
	// ErrNotFound: unknown record id.
	ErrNotFound = store.ErrNotFound
	// ErrForbidden: requester is not the record's author.
	ErrForbidden = errors.New("requester is not the author")
	// ErrNotPending: force-publish or pending-only operation on a record
	// that already published or was deleted.
	ErrNotPending = errors.New("record is not pending")
	// ErrFutureDate: day recap requested for the current or a future day.
	ErrFutureDate = errors.New("day is not in the past")
)
