package errors

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")

	ErrRoomExists = errors.New("room already exists")

	ErrLockNotFound = errors.New("room lock not found")

	ErrDuplicateToken = errors.New("room lock with this idempotency token already exists")

	ErrInvalidRange = errors.New("start date must be before end date")
)
