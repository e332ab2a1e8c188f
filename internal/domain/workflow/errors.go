package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted
	// from the current state.
	ErrInvalidTransition = errors.New("invalid item status transition")

	// ErrGuardFailed is returned when every candidate transition for a
	// trigger was blocked by its guard.
	ErrGuardFailed = errors.New("transition guard failed")
)
