// Package reconciler re-evaluates alerts on fixed intervals without new
// events arriving: expired alerts are auto-closed and open alerts whose
// window has filled are escalated.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/clock"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/rules"
	"github.com/fleetwatch/fleetwatch/internal/service"
)

// listLimit bounds how many alerts a single pass fetches per status.
const listLimit = 10000

// Reconciler runs the auto-close and re-evaluation passes.
type Reconciler struct {
	alerts   *service.Service
	registry *rules.Registry
	clock    clock.Clock
	log      *slog.Logger

	autoCloseInterval time.Duration
	reevalInterval    time.Duration

	autoCloseRunning atomic.Bool
	reevalRunning    atomic.Bool

	stop    chan struct{}
	stopped chan struct{}
}

// New builds a reconciler with the two pass intervals.
func New(alerts *service.Service, registry *rules.Registry, clk clock.Clock, autoCloseInterval, reevalInterval time.Duration, log *slog.Logger) *Reconciler {
	return &Reconciler{
		alerts:            alerts,
		registry:          registry,
		clock:             clk,
		log:               log.With(slog.String("component", "reconciler")),
		autoCloseInterval: autoCloseInterval,
		reevalInterval:    reevalInterval,
		stop:              make(chan struct{}),
		stopped:           make(chan struct{}),
	}
}

// Start runs both pass timers until Stop or context cancellation. Call in a
// goroutine. Each firing dispatches its pass on its own goroutine so a slow
// pass never delays the other timer; the per-pass single-run guard skips a
// firing entirely while the prior run is still executing.
func (r *Reconciler) Start(ctx context.Context) {
	defer close(r.stopped)

	r.log.Info("reconciler started",
		slog.Duration("auto_close_interval", r.autoCloseInterval),
		slog.Duration("reevaluate_interval", r.reevalInterval))

	autoClose := time.NewTicker(r.autoCloseInterval)
	defer autoClose.Stop()
	reeval := time.NewTicker(r.reevalInterval)
	defer reeval.Stop()

	for {
		select {
		case <-autoClose.C:
			go r.RunAutoClosePass(ctx)
		case <-reeval.C:
			go r.RunReevaluatePass(ctx)
		case <-r.stop:
			r.log.Info("reconciler stopped")
			return
		case <-ctx.Done():
			r.log.Info("reconciler context cancelled")
			return
		}
	}
}

// Stop signals the timer loop to exit and waits for it. In-flight passes
// finish on their own.
func (r *Reconciler) Stop() {
	close(r.stop)
	<-r.stopped
}

// RunAutoClosePass closes every OPEN or ESCALATED alert that has outlived
// its rule's auto-close timeout. Skipped entirely if the previous run is
// still executing.
func (r *Reconciler) RunAutoClosePass(ctx context.Context) {
	if !r.autoCloseRunning.CompareAndSwap(false, true) {
		metrics.ReconcilerPassSkips.WithLabelValues("auto_close").Inc()
		r.log.Info("auto-close pass already running, skipping")
		return
	}
	defer r.autoCloseRunning.Store(false)

	start := time.Now()
	defer func() {
		metrics.ReconcilerPassDuration.WithLabelValues("auto_close").Observe(time.Since(start).Seconds())
	}()

	open, _ := r.alerts.ListByStatus(ctx, models.StatusOpen, listLimit)
	escalated, _ := r.alerts.ListByStatus(ctx, models.StatusEscalated, listLimit)
	candidates := append(open, escalated...)
	now := r.clock.Now()

	closed := 0
	for _, alert := range candidates {
		rule, ok := r.registry.Get(alert.SourceType)
		if !ok || !rule.Expired(alert.Timestamp, now) {
			continue
		}
		reason := fmt.Sprintf("Alert expired after %d minutes", rule.AutoCloseAfterMins)
		if _, err := r.alerts.AutoCloseAlert(ctx, alert.AlertID, reason); err != nil {
			metrics.ReconcilerAlertErrors.WithLabelValues("auto_close").Inc()
			r.log.Warn("auto-close failed for alert",
				slog.String("alert_id", alert.AlertID), slog.Any("error", err))
			continue
		}
		closed++
	}

	r.log.Info("auto-close pass completed",
		slog.Int("checked", len(candidates)), slog.Int("closed", closed))
}

// RunReevaluatePass re-runs the escalation evaluator over every OPEN alert
// and applies qualifying verdicts. Carries the same single-run guard as the
// auto-close pass.
func (r *Reconciler) RunReevaluatePass(ctx context.Context) {
	if !r.reevalRunning.CompareAndSwap(false, true) {
		metrics.ReconcilerPassSkips.WithLabelValues("reevaluate").Inc()
		r.log.Info("re-evaluation pass already running, skipping")
		return
	}
	defer r.reevalRunning.Store(false)

	start := time.Now()
	defer func() {
		metrics.ReconcilerPassDuration.WithLabelValues("reevaluate").Observe(time.Since(start).Seconds())
	}()

	open, _ := r.alerts.ListByStatus(ctx, models.StatusOpen, listLimit)

	escalations := 0
	for _, alert := range open {
		verdict := r.alerts.Evaluate(ctx, alert)
		if !verdict.ShouldEscalate {
			continue
		}
		if _, err := r.alerts.EscalateAlert(ctx, alert.AlertID, verdict); err != nil {
			metrics.ReconcilerAlertErrors.WithLabelValues("reevaluate").Inc()
			r.log.Warn("re-evaluation escalation failed for alert",
				slog.String("alert_id", alert.AlertID), slog.Any("error", err))
			continue
		}
		escalations++
	}

	r.log.Info("re-evaluation pass completed",
		slog.Int("checked", len(open)), slog.Int("escalated", escalations))
}
