package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/smukkama/landslide-monitor/internal/database"
)

const (
	defaultAlertLimit = 20
	maxAlertLimit     = 200
)

// AlertHistory reads journaled alerts.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, site string, limit int) ([]*database.AlertLog, error)
}

type AlertsHandler struct {
	history AlertHistory
}

func NewAlertsHandler(history AlertHistory) *AlertsHandler {
	return &AlertsHandler{history: history}
}

// HandleRecent serves GET /api/alerts?site=<site>&limit=<n>, newest first.
func (h *AlertsHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	site := r.URL.Query().Get("site")
	if site == "" {
		respondWithError(w, NewAPIError(ErrorCodeMissingParameter, "site is required", nil, http.StatusBadRequest))
		return
	}

	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithError(w, NewAPIError(ErrorCodeBadRequest, "limit must be a positive integer", raw, http.StatusBadRequest))
			return
		}
		limit = min(n, maxAlertLimit)
	}

	alerts, err := h.history.RecentAlerts(r.Context(), site, limit)
	if err != nil {
		respondWithError(w, NewAPIError(ErrorCodeInternalServerError, "failed to read alert history", nil, http.StatusInternalServerError))
		return
	}
	if alerts == nil {
		alerts = []*database.AlertLog{}
	}

	respondWithJSON(w, http.StatusOK, alerts)
}
