// Package engine decides whether an alert's window of sibling events
// warrants escalation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/clock"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/rules"
)

// Verdict is the outcome of one escalation evaluation.
type Verdict struct {
	ShouldEscalate bool            `json:"shouldEscalate"`
	Reason         string          `json:"reason,omitempty"`
	NewSeverity    models.Severity `json:"newSeverity,omitempty"`
}

// WindowIndex counts qualifying siblings in a trailing time window.
type WindowIndex interface {
	CountWindow(ctx context.Context, driverID, sourceType, excludeID string, since time.Time) (int, error)
}

// Evaluator applies the per-source-type counting rule to an alert.
type Evaluator struct {
	registry *rules.Registry
	windows  WindowIndex
	clock    clock.Clock
	log      *slog.Logger
}

// NewEvaluator builds an evaluator over the given registry and window index.
func NewEvaluator(registry *rules.Registry, windows WindowIndex, clk clock.Clock, log *slog.Logger) *Evaluator {
	return &Evaluator{
		registry: registry,
		windows:  windows,
		clock:    clk,
		log:      log.With(slog.String("component", "evaluator")),
	}
}

// Evaluate counts the alert's siblings inside the rule's trailing window and
// returns an escalation verdict. The subject alert always counts as one,
// whether or not it is already registered in the index: the index query
// excludes its id and the count adds one back. A failed window query
// degrades to "no escalation" rather than failing the caller.
func (e *Evaluator) Evaluate(ctx context.Context, alert *models.Alert) Verdict {
	rule, ok := e.registry.Get(alert.SourceType)
	if !ok || !rule.Escalates() {
		return Verdict{}
	}

	windowStart := e.clock.Now().Add(-rule.Window())
	siblings, err := e.windows.CountWindow(ctx, alert.DriverID, alert.SourceType, alert.AlertID, windowStart)
	if err != nil {
		e.log.Warn("window count failed, skipping escalation check",
			slog.String("alert_id", alert.AlertID),
			slog.String("source_type", alert.SourceType),
			slog.Any("error", err))
		return Verdict{}
	}

	count := siblings + 1
	if !rule.ShouldEscalate(count) {
		return Verdict{}
	}

	return Verdict{
		ShouldEscalate: true,
		Reason:         fmt.Sprintf("%d %s alerts in last %d minutes", count, alert.SourceType, rule.WindowMins),
		NewSeverity:    rule.EscalatedSeverity,
	}
}
