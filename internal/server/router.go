// Package server assembles the HTTP router and middleware chain.
package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetwatch/fleetwatch/internal/auth"
	"github.com/fleetwatch/fleetwatch/internal/handlers"
	"github.com/fleetwatch/fleetwatch/internal/middleware"
	"github.com/fleetwatch/fleetwatch/internal/ratelimit"
)

// Options configures the router.
type Options struct {
	Handler       *handlers.Handler
	Tokens        *auth.TokenGenerator
	GlobalLimiter ratelimit.Limiter
	CreateLimiter ratelimit.Limiter
	Log           *slog.Logger
}

// NewRouter builds the full route table. Every /api route sits behind the
// global rate limit; ingestion routes carry a tighter per-client limit, and
// mutation routes require authentication. Health and metrics stay unlimited
// so probes and scrapes never get throttled.
func NewRouter(opts Options) http.Handler {
	h := opts.Handler
	authn := middleware.Authenticate(opts.Tokens)
	operator := middleware.RequireRole(auth.RoleOperator)
	admin := middleware.RequireRole(auth.RoleAdmin)
	createLimit := ratelimit.Middleware(opts.CreateLimiter, opts.Log)

	api := http.NewServeMux()

	api.HandleFunc("POST /api/auth/login", h.Login)
	api.Handle("GET /api/auth/profile", authn(http.HandlerFunc(h.Profile)))

	api.Handle("POST /api/alerts", createLimit(http.HandlerFunc(h.CreateAlert)))
	api.HandleFunc("GET /api/alerts", h.ListAlerts)
	api.HandleFunc("GET /api/alerts/stats", h.GetStats)
	api.HandleFunc("GET /api/alerts/top-drivers", h.TopDrivers)
	api.HandleFunc("GET /api/alerts/status/{status}", h.ListAlertsByStatus)
	api.HandleFunc("GET /api/alerts/{id}", h.GetAlert)
	api.Handle("PATCH /api/alerts/{id}/resolve", authn(operator(http.HandlerFunc(h.ResolveAlert))))
	api.Handle("POST /api/alerts/{id}/escalate", authn(operator(http.HandlerFunc(h.EscalateAlert))))

	api.Handle("POST /api/webhooks/document-renewal", createLimit(http.HandlerFunc(h.DocumentRenewal)))
	api.Handle("POST /api/webhooks/external-alert", createLimit(http.HandlerFunc(h.ExternalAlert)))

	api.HandleFunc("GET /api/analytics/timeseries", h.AnalyticsTimeSeries)
	api.HandleFunc("GET /api/analytics/insights", h.AnalyticsInsights)
	api.Handle("POST /api/analytics/snapshot", authn(admin(http.HandlerFunc(h.AnalyticsSnapshot))))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /debug/alerts", authn(admin(http.HandlerFunc(h.DebugAlerts))))
	mux.Handle("/api/", ratelimit.Middleware(opts.GlobalLimiter, opts.Log)(api))

	return middleware.RequestID(mux)
}
