package service

import (
	"errors"

	"github.com/okian/goalpulse/internal/domain/types"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrCycleInProgress = types.ErrCycleInProgress
	ErrNotStarted      = types.ErrNotStarted
	ErrFixtureNotFound = types.ErrNotFound
	ErrEntityPanic     = errors.New("entity processing panicked")
)
