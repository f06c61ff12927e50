package sources

import "errors"

// Sentinel kinds for source failures.
var (
	ErrSourceStatus   = errors.New("source returned unexpected status")
	ErrSourceDisabled = errors.New("source disabled")
	ErrSourcePanic    = errors.New("source panicked")
)
