package service

import "errors"

var (
	// ErrFlowClosed is returned when the auth flow is not open.
	ErrFlowClosed = errors.New("auth flow is closed")
	// ErrBusy is returned while a submission is in flight.
	ErrBusy = errors.New("auth flow is busy")
	// ErrCooldownActive is returned while the cooldown blocks the action.
	ErrCooldownActive = errors.New("cooldown active")
	// ErrSuperseded is returned when the flow moved on while the identity
	// provider call was in flight; the result was discarded.
	ErrSuperseded = errors.New("auth flow step superseded")
	// ErrInvalidTransition is returned for a trigger the current view does not accept.
	ErrInvalidTransition = errors.New("invalid auth flow transition")
)
