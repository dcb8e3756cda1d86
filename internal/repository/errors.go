package repository

import "errors"

// Common repository errors
var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict means a conditional transition found the record in a
	// state that does not admit it. Callers decide whether that is an
	// invalid transition or an already-resolved request.
	ErrConflict     = errors.New("record state conflict")
	ErrDuplicate    = errors.New("record already exists")
	ErrInvalidInput = errors.New("invalid input")
)
