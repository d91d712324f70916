package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/httputil"
	"github.com/fleetwatch/fleetwatch/internal/models"
)

// sourceTypeMapping translates inbound webhook alert types to the source
// types the rule engine understands. Unmapped types fall through unchanged
// and are accepted only when a rule exists for them.
var sourceTypeMapping = map[string]string{
	"speeding":            "overspeed",
	"speed_violation":     "overspeed",
	"negative_review":     "feedback_negative",
	"poor_rating":         "feedback_negative",
	"document_expiration": "document_expiry",
	"safety_concern":      "safety_incident",
}

type documentRenewalPayload struct {
	DriverID     string `json:"driverId"`
	DocumentType string `json:"documentType"`
	RenewalDate  string `json:"renewalDate"`
	DocumentID   string `json:"documentId"`
}

type externalAlertPayload struct {
	Source    string            `json:"source"`
	AlertType string            `json:"type"`
	DriverID  string            `json:"driverId"`
	VehicleID string            `json:"vehicleId"`
	Data      map[string]string `json:"data"`
}

// DocumentRenewal reacts to a renewed document by closing the driver's
// matching document expiry alerts. The expiry condition no longer holds, so
// the alerts are auto-closed rather than left to age out.
func (h *Handler) DocumentRenewal(w http.ResponseWriter, r *http.Request) {
	var payload documentRenewalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.DriverID == "" || payload.DocumentType == "" {
		httputil.WriteError(w, http.StatusBadRequest, "driverId and documentType are required")
		return
	}

	renewalDate := payload.RenewalDate
	if renewalDate == "" {
		renewalDate = time.Now().UTC().Format("2006-01-02")
	}
	reason := fmt.Sprintf("Document %s renewed on %s", payload.DocumentType, renewalDate)

	open, _ := h.alerts.ListByStatus(r.Context(), models.StatusOpen, 0)
	escalated, _ := h.alerts.ListByStatus(r.Context(), models.StatusEscalated, 0)

	closed := 0
	for _, alert := range append(open, escalated...) {
		if alert.SourceType != "document_expiry" || alert.DriverID != payload.DriverID {
			continue
		}
		if alert.Metadata["documentType"] != payload.DocumentType {
			continue
		}
		if _, err := h.alerts.AutoCloseAlert(r.Context(), alert.AlertID, reason); err == nil {
			closed++
		}
	}

	h.log.Info("document renewal processed",
		"driver_id", payload.DriverID,
		"document_type", payload.DocumentType,
		"alerts_closed", closed)

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"driverId":     payload.DriverID,
		"documentType": payload.DocumentType,
		"alertsClosed": closed,
	})
}

// ExternalAlert ingests alerts from third-party monitoring systems, mapping
// their alert types onto configured source types.
func (h *Handler) ExternalAlert(w http.ResponseWriter, r *http.Request) {
	var payload externalAlertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Source == "" || payload.AlertType == "" || payload.DriverID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "source, type, and driverId are required")
		return
	}

	sourceType, ok := sourceTypeMapping[payload.AlertType]
	if !ok {
		sourceType = payload.AlertType
	}
	if _, ok := h.registry.Get(sourceType); !ok {
		httputil.WriteError(w, http.StatusBadRequest, "no rule configured for "+sourceType)
		return
	}

	metadata := map[string]string{"source": payload.Source, "originalType": payload.AlertType}
	for k, v := range payload.Data {
		metadata[k] = v
	}

	alert, err := h.alerts.CreateAlert(r.Context(), &models.CreateAlertRequest{
		SourceType: sourceType,
		DriverID:   payload.DriverID,
		VehicleID:  payload.VehicleID,
		Metadata:   metadata,
	})
	if err != nil {
		h.log.Error("external alert ingestion failed", "error", err, "driver_id", payload.DriverID)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, alert)
}
