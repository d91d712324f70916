package handlers

import (
	"net/http"

	"github.com/fleetwatch/fleetwatch/internal/httputil"
)

// AnalyticsTimeSeries returns the daily snapshot series, zero-filled for
// days with no recorded snapshot.
func (h *Handler) AnalyticsTimeSeries(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 7)
	if days > 30 {
		days = 30
	}
	series, err := h.analytics.TimeSeries(r.Context(), days)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load time series")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"days":   days,
		"series": series,
	})
}

// AnalyticsInsights compares today's totals with yesterday's and reports a
// trend alongside the current aggregate stats.
func (h *Handler) AnalyticsInsights(w http.ResponseWriter, r *http.Request) {
	insight, err := h.analytics.Insights(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to compute insights")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, insight)
}

// AnalyticsSnapshot records today's aggregate stats on demand.
func (h *Handler) AnalyticsSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.analytics.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to record snapshot")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}
