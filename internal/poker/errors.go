package poker

import "errors"

var (
	// ErrInvalid marks malformed or out-of-range input.
	ErrInvalid = errors.New("invalid input")
	// ErrNotFound marks a missing game, story, round or participant.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks a caller without rights for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks an action that is not valid in the current state.
	ErrConflict = errors.New("conflict")
)
