package model

import "errors"

var (
	// ErrNotFound is returned when a recipe, machine or container does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOutOfRange is returned for vote scores outside [MinVoteScore, MaxVoteScore].
	ErrOutOfRange = errors.New("score out of range")
	// ErrInvalid is returned for structurally invalid input.
	ErrInvalid = errors.New("invalid")
	// ErrConflict is returned when creating something that already exists.
	ErrConflict = errors.New("already exists")
	// ErrQuotaExceeded is returned when an author holds too many recipes.
	ErrQuotaExceeded = errors.New("quota exceeded")
)
