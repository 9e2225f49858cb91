package services

import "errors"

// Error kinds returned by services. The HTTP layer maps each kind to a
// fixed status code; everything unmatched becomes a 500.
var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")
	ErrInvalid   = errors.New("invalid input")
	ErrForbidden = errors.New("forbidden")
)
