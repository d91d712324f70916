package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fleetwatch/fleetwatch/internal/httputil"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/service"
	"github.com/fleetwatch/fleetwatch/internal/store"
)

const defaultListLimit = 100

// CreateAlert ingests a new alert and runs escalation evaluation inline.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DriverID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "driverId is required")
		return
	}
	if req.SourceType == "" {
		httputil.WriteError(w, http.StatusBadRequest, "sourceType is required")
		return
	}
	if _, ok := h.registry.Get(req.SourceType); !ok {
		httputil.WriteError(w, http.StatusBadRequest, "unknown sourceType: "+req.SourceType)
		return
	}

	alert, err := h.alerts.CreateAlert(r.Context(), &req)
	if err != nil {
		h.log.Error("alert creation failed", "error", err, "driver_id", req.DriverID)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, alert)
}

// GetAlert returns a single alert by id.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	alert, err := h.alerts.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "alert not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load alert")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

// ListAlerts returns alerts newest first, optionally filtered by status or
// severity via query parameters.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)

	var (
		alerts []*models.Alert
		err    error
	)
	switch {
	case r.URL.Query().Get("status") != "":
		status := models.Status(r.URL.Query().Get("status"))
		if !models.ValidStatus(status) {
			httputil.WriteError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		alerts, err = h.alerts.ListByStatus(r.Context(), status, limit)
	case r.URL.Query().Get("severity") != "":
		severity := models.Severity(r.URL.Query().Get("severity"))
		if !models.ValidSeverity(severity) {
			httputil.WriteError(w, http.StatusBadRequest, "invalid severity filter")
			return
		}
		alerts, err = h.alerts.ListBySeverity(r.Context(), severity)
	default:
		alerts, err = h.alerts.ListAll(r.Context(), limit)
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ListAlertsByStatus returns alerts in the given state, newest first.
func (h *Handler) ListAlertsByStatus(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.PathValue("status"))
	if !models.ValidStatus(status) {
		httputil.WriteError(w, http.StatusBadRequest, "invalid status: "+string(status))
		return
	}
	alerts, err := h.alerts.ListByStatus(r.Context(), status, queryInt(r, "limit", defaultListLimit))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ResolveAlert marks an alert resolved regardless of its current state.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	alert, err := h.alerts.ResolveAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "alert not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

// EscalateAlert forces an escalation check on an open alert. The operation
// is a no-op when the alert already left the OPEN state.
func (h *Handler) EscalateAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	alert, err := h.alerts.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "alert not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load alert")
		return
	}

	verdict := h.alerts.Evaluate(r.Context(), alert)
	if !verdict.ShouldEscalate {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"escalated": false,
			"alert":     alert,
		})
		return
	}
	escalated, err := h.alerts.EscalateAlert(r.Context(), id, verdict)
	if err != nil && !errors.Is(err, service.ErrUnknownRule) {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to escalate alert")
		return
	}
	if escalated == nil {
		escalated = alert
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"escalated": escalated.Status == models.StatusEscalated,
		"alert":     escalated,
	})
}

// GetStats returns aggregate alert counts by severity and status.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.alerts.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// TopDrivers returns drivers ranked by active alert count.
func (h *Handler) TopDrivers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	drivers, err := h.alerts.TopDrivers(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to rank drivers")
		return
	}
	if drivers == nil {
		drivers = []*models.DriverStanding{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"drivers": drivers,
		"count":   len(drivers),
	})
}

// DebugAlerts dumps every stored alert, unfiltered. Operator tooling only.
func (h *Handler) DebugAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alerts.ListAll(r.Context(), 0)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
