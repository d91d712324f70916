// Package handlers implements the HTTP API surface.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/fleetwatch/fleetwatch/internal/analytics"
	"github.com/fleetwatch/fleetwatch/internal/auth"
	"github.com/fleetwatch/fleetwatch/internal/httputil"
	"github.com/fleetwatch/fleetwatch/internal/rules"
	"github.com/fleetwatch/fleetwatch/internal/service"
	"github.com/fleetwatch/fleetwatch/internal/store"
)

// Handler bundles the dependencies shared by all HTTP endpoints.
type Handler struct {
	alerts    *service.Service
	analytics *analytics.Service
	registry  *rules.Registry
	store     store.Store
	tokens    *auth.TokenGenerator
	users     []auth.User
	log       *slog.Logger
}

// New creates a Handler wired to the given services.
func New(alerts *service.Service, an *analytics.Service, registry *rules.Registry, st store.Store, tokens *auth.TokenGenerator, users []auth.User, log *slog.Logger) *Handler {
	return &Handler{
		alerts:    alerts,
		analytics: an,
		registry:  registry,
		store:     st,
		tokens:    tokens,
		users:     users,
		log:       log,
	}
}

// HealthCheck reports service liveness and store reachability. The service
// stays up when the store is down, so a failed ping degrades the payload
// rather than the status code.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	storeStatus := "connected"
	if err := h.store.Ping(r.Context()); err != nil {
		storeStatus = "disconnected"
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"redis":  storeStatus,
		"rules":  h.registry.Len(),
	})
}
