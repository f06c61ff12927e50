package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/goalpulse/internal/domain/types"
)

// FixtureDependencies defines the interface for single-fixture lookups.
type FixtureDependencies interface {
	Fixture(ctx context.Context, entityID string) (types.Fixture, error)
}

// FixtureHandler handles GET /fixtures/{id}.
type FixtureHandler struct {
	deps FixtureDependencies
}

// NewFixtureHandler creates a new fixture handler.
func NewFixtureHandler(deps FixtureDependencies) *FixtureHandler {
	return &FixtureHandler{deps: deps}
}

// HandleGetFixture returns the fixture's window, trend and last alert.
func (h *FixtureHandler) HandleGetFixture(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	f, err := h.deps.Fixture(r.Context(), id)
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	default:
		writeJSON(w, http.StatusOK, f)
	}
}
