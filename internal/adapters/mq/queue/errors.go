package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("alert queue full")
	ErrClosed = errors.New("alert queue closed")
)
