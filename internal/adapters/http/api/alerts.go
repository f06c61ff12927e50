package api

import (
	"net/http"

	"github.com/okian/goalpulse/internal/domain/model"
)

// AlertsDependencies exposes the recent alert journal.
type AlertsDependencies interface {
	RecentAlerts(limit int) []model.Alert
}

// AlertsHandler handles GET /alerts?limit=N.
type AlertsHandler struct {
	deps     AlertsDependencies
	maxLimit int
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(deps AlertsDependencies, maxLimit int) *AlertsHandler {
	return &AlertsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetAlerts returns the most recent alerts, newest first.
func (h *AlertsHandler) HandleGetAlerts(w http.ResponseWriter, r *http.Request) {
	n, err := parseLimit(r, defaultAlertsN, h.maxLimit)
	if err != nil {
		writeLimitError(w, err)
		return
	}
	alerts := h.deps.RecentAlerts(n)
	if alerts == nil {
		alerts = []model.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}
