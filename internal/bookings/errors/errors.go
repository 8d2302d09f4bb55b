package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrDuplicateToken = errors.New("booking with this idempotency token already exists")

	// ErrStatusConflict is returned by conditional transitions when the
	// booking is no longer in the expected status.
	ErrStatusConflict = errors.New("booking status changed concurrently")
)
