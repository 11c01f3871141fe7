package executor

import "errors"

// Sentinel errors returned by Execute. Callers classify outcomes with
// errors.Is; the wrapped message carries the request specifics.
var (
	// ErrValidation indicates a payload that failed validation.
	ErrValidation = errors.New("payload validation failed")

	// ErrExpired indicates the approval window lapsed before execution.
	ErrExpired = errors.New("approval expired")

	// ErrRateLimited indicates the per-category limit was exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrProtectedResource indicates the target is on the protected list.
	ErrProtectedResource = errors.New("protected resource")

	// ErrHandler wraps a failure or timeout inside an action handler.
	ErrHandler = errors.New("handler failed")

	// ErrUnknownActionType indicates no handler is registered for the
	// request's action type.
	ErrUnknownActionType = errors.New("unknown action type")
)
