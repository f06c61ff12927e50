package fusion

import "errors"

// Sentinel errors for caller contract violations.
var (
	ErrEmptyEntity    = errors.New("fusion: empty entity id")
	ErrEntityMismatch = errors.New("fusion: reading belongs to another entity")
)
