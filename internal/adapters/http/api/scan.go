package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/goalpulse/internal/domain/types"
)

// ScanDependencies triggers an out-of-band polling cycle.
type ScanDependencies interface {
	RunCycle(ctx context.Context) (types.CycleReport, error)
}

// ScanHandler handles POST /scan.
type ScanHandler struct {
	deps ScanDependencies
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(deps ScanDependencies) *ScanHandler {
	return &ScanHandler{deps: deps}
}

// HandleScan runs one cycle and returns its report.
// A client disconnect does not cancel the cycle.
func (h *ScanHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.RunCycle(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, types.ErrCycleInProgress):
		writeError(w, http.StatusConflict, "cycle_in_progress", err)
	case errors.Is(err, types.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}
