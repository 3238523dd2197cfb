package domain

import "errors"

// Error kinds surfaced by the task tracker and the result store. Callers wrap
// them with detail via fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
