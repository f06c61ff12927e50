// Package statestore persists the alert decision records so that
// suppression survives restarts.
package statestore

import (
	"context"
	"errors"

	"github.com/okian/goalpulse/internal/domain/model"
)

// Sentinel error kinds for this package.
var (
	ErrCorruptState = errors.New("corrupt state snapshot")
	ErrStoreClosed  = errors.New("state store closed")
)

// Store loads and saves the full set of alert records.
// Save replaces whatever was stored before.
type Store interface {
	Load(ctx context.Context) ([]model.AlertRecord, error)
	Save(ctx context.Context, records []model.AlertRecord) error
	Close() error
}

// Nop discards every snapshot.
type Nop struct{}

// Load returns no records.
func (Nop) Load(context.Context) ([]model.AlertRecord, error) { return nil, nil }

// Save does nothing.
func (Nop) Save(context.Context, []model.AlertRecord) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
