package service

import "errors"

// Workflow and verification errors. Handlers map these to HTTP
// statuses at the boundary; services never write responses.
var (
	// ErrValidation means malformed or missing required input.
	ErrValidation = errors.New("invalid input")
	// ErrInvalidTransition means the requested change violates the
	// activation state machine.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrAlreadyResolved means the request reached a terminal state (or
	// was activated) before this verification could be applied.
	ErrAlreadyResolved = errors.New("request already resolved")
	// ErrCodeExpired means the verification window has closed.
	ErrCodeExpired = errors.New("verification code expired")
	// ErrInvalidCode means the submitted code does not match.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrTokenInvalid means a sharing token is unknown, revoked,
	// exhausted, or expired.
	ErrTokenInvalid = errors.New("sharing token invalid")
)
