package types

import "errors"

// Sentinel errors shared by the service and the HTTP layer.
var (
	ErrNotFound        = errors.New("not found")
	ErrCycleInProgress = errors.New("cycle already in progress")
	ErrNotStarted      = errors.New("service not started")
)
