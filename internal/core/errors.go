package core

import "errors"

// Sentinel errors surfaced synchronously at the management API boundary.
// Everything else is reported asynchronously via job status fields.
var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInactive = errors.New("category is inactive")
	ErrJobNotFound      = errors.New("job not found")
	ErrJobNotPending    = errors.New("job is not pending")
	ErrJobRunning       = errors.New("job is running")
	ErrInvalidInterval  = errors.New("interval is not in the allowed set")
	ErrInvalidPriority  = errors.New("priority out of range")
	ErrThrottled        = errors.New("provider throttled request")
)
