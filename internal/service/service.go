// Package service implements the alert lifecycle: creation with inline
// escalation, the one-directional state machine, and the query surface
// exposed to collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/fleetwatch/fleetwatch/internal/clock"
	"github.com/fleetwatch/fleetwatch/internal/engine"
	"github.com/fleetwatch/fleetwatch/internal/metrics"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/rules"
	"github.com/fleetwatch/fleetwatch/internal/store"
)

// ErrUnknownRule rejects ingestion of a source type with no configured rule.
var ErrUnknownRule = errors.New("no rule defined for source type")

// Publisher emits lifecycle events to interested collaborators. Publishing
// is best-effort; failures never fail a transition.
type Publisher interface {
	Publish(ctx context.Context, event string, alert *models.Alert) error
}

// NoopPublisher discards lifecycle events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, *models.Alert) error { return nil }

// Service is the lifecycle controller for alerts.
type Service struct {
	store     store.Store
	registry  *rules.Registry
	evaluator *engine.Evaluator
	clock     clock.Clock
	publisher Publisher
	log       *slog.Logger
}

// NewService wires the controller. Pass NoopPublisher{} when no event
// transport is configured.
func NewService(st store.Store, registry *rules.Registry, evaluator *engine.Evaluator, clk clock.Clock, publisher Publisher, log *slog.Logger) *Service {
	return &Service{
		store:     st,
		registry:  registry,
		evaluator: evaluator,
		clock:     clk,
		publisher: publisher,
		log:       log.With(slog.String("component", "alerts")),
	}
}

// CreateAlert ingests one event: persists the alert at the rule's initial
// severity, registers it in the window index, and evaluates escalation
// inline so the returned alert already reflects the verdict. Store outages
// degrade to a best-effort record, never a failed ingestion.
func (s *Service) CreateAlert(ctx context.Context, req *models.CreateAlertRequest) (*models.Alert, error) {
	rule, ok := s.registry.Get(req.SourceType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRule, req.SourceType)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate alert id: %w", err)
	}

	alert := &models.Alert{
		AlertID:    id.String(),
		SourceType: req.SourceType,
		DriverID:   req.DriverID,
		VehicleID:  req.VehicleID,
		Severity:   rule.InitialSeverity,
		Status:     models.StatusOpen,
		Timestamp:  s.clock.Now(),
		Metadata:   req.Metadata,
	}

	if err := s.store.SaveAlert(ctx, alert); err != nil {
		metrics.StoreErrors.WithLabelValues("save_alert").Inc()
		s.log.Error("failed to persist alert, continuing degraded",
			slog.String("alert_id", alert.AlertID), slog.Any("error", err))
	}

	if rule.Escalates() {
		if err := s.store.RegisterWindow(ctx, alert.DriverID, alert.SourceType, alert.AlertID, alert.Timestamp, rule.Window()); err != nil {
			metrics.StoreErrors.WithLabelValues("register_window").Inc()
			s.log.Warn("failed to register alert in window index",
				slog.String("alert_id", alert.AlertID), slog.Any("error", err))
		}
	}

	metrics.AlertsCreated.WithLabelValues(alert.SourceType).Inc()
	s.log.Info("alert created",
		slog.String("alert_id", alert.AlertID),
		slog.String("source_type", alert.SourceType),
		slog.String("driver_id", alert.DriverID),
		slog.String("severity", string(alert.Severity)))
	s.publish(ctx, "created", alert)

	verdict := s.evaluator.Evaluate(ctx, alert)
	if verdict.ShouldEscalate {
		if escalated, err := s.EscalateAlert(ctx, alert.AlertID, verdict); err == nil && escalated != nil {
			return escalated, nil
		}
	}

	return alert, nil
}

// Evaluate re-runs the escalation check for an existing alert.
func (s *Service) Evaluate(ctx context.Context, alert *models.Alert) engine.Verdict {
	return s.evaluator.Evaluate(ctx, alert)
}

// GetAlert loads an alert. Unknown ids return store.ErrNotFound.
func (s *Service) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// EscalateAlert applies an escalation verdict. Escalation is one-directional:
// an alert already ESCALATED, AUTO_CLOSED, or RESOLVED is left untouched and
// nil is returned.
func (s *Service) EscalateAlert(ctx context.Context, id string, verdict engine.Verdict) (*models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, s.absentOrDegraded("escalate", id, err)
	}
	if alert.Status != models.StatusOpen {
		return nil, nil
	}

	oldStatus, oldSeverity := alert.Status, alert.Severity
	now := s.clock.Now()
	alert.Status = models.StatusEscalated
	if verdict.NewSeverity != "" {
		alert.Severity = verdict.NewSeverity
	}
	alert.EscalatedAt = &now
	alert.RuleTriggered = verdict.Reason

	if err := s.store.ApplyTransition(ctx, alert, oldStatus, oldSeverity); err != nil {
		metrics.StoreErrors.WithLabelValues("transition").Inc()
		s.log.Error("failed to persist escalation",
			slog.String("alert_id", id), slog.Any("error", err))
		return nil, nil
	}

	metrics.AlertsEscalated.WithLabelValues(alert.SourceType).Inc()
	s.log.Info("alert escalated",
		slog.String("alert_id", id),
		slog.String("reason", verdict.Reason),
		slog.String("severity", string(alert.Severity)))
	s.publish(ctx, "escalated", alert)
	return alert, nil
}

// AutoCloseAlert closes an expired alert. A RESOLVED alert wins over
// auto-close, and repeating the transition is a no-op.
func (s *Service) AutoCloseAlert(ctx context.Context, id, reason string) (*models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, s.absentOrDegraded("auto-close", id, err)
	}
	if alert.Status == models.StatusAutoClosed || alert.Status == models.StatusResolved {
		return nil, nil
	}

	oldStatus, oldSeverity := alert.Status, alert.Severity
	now := s.clock.Now()
	alert.Status = models.StatusAutoClosed
	alert.AutoClosedAt = &now
	if alert.Metadata == nil {
		alert.Metadata = make(map[string]string)
	}
	alert.Metadata["autoCloseReason"] = reason

	if err := s.store.ApplyTransition(ctx, alert, oldStatus, oldSeverity); err != nil {
		metrics.StoreErrors.WithLabelValues("transition").Inc()
		s.log.Error("failed to persist auto-close",
			slog.String("alert_id", id), slog.Any("error", err))
		return nil, nil
	}

	metrics.AlertsAutoClosed.WithLabelValues(alert.SourceType).Inc()
	s.log.Info("alert auto-closed",
		slog.String("alert_id", id), slog.String("reason", reason))
	s.publish(ctx, "auto_closed", alert)
	return alert, nil
}

// ResolveAlert marks an alert RESOLVED. Manual resolution is unconditional:
// it overrides OPEN, ESCALATED, and even AUTO_CLOSED, and resolving twice
// yields the same terminal record.
func (s *Service) ResolveAlert(ctx context.Context, id string) (*models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, s.absentOrDegraded("resolve", id, err)
	}
	if alert.Status == models.StatusResolved {
		return alert, nil
	}

	oldStatus, oldSeverity := alert.Status, alert.Severity
	now := s.clock.Now()
	alert.Status = models.StatusResolved
	alert.ResolvedAt = &now

	if err := s.store.ApplyTransition(ctx, alert, oldStatus, oldSeverity); err != nil {
		metrics.StoreErrors.WithLabelValues("transition").Inc()
		s.log.Error("failed to persist resolve",
			slog.String("alert_id", id), slog.Any("error", err))
		return nil, nil
	}

	metrics.AlertsResolved.WithLabelValues(alert.SourceType).Inc()
	s.log.Info("alert resolved", slog.String("alert_id", id))
	s.publish(ctx, "resolved", alert)
	return alert, nil
}

// ListByStatus returns alerts in a status, newest first. Read failures
// degrade to an empty list.
func (s *Service) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Alert, error) {
	ids, err := s.store.IDsByStatus(ctx, status)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("ids_by_status").Inc()
		s.log.Warn("failed to list alerts by status",
			slog.String("status", string(status)), slog.Any("error", err))
		return nil, nil
	}
	return s.loadSorted(ctx, ids, limit), nil
}

// ListBySeverity returns alerts at a severity, newest first.
func (s *Service) ListBySeverity(ctx context.Context, severity models.Severity) ([]*models.Alert, error) {
	ids, err := s.store.IDsBySeverity(ctx, severity)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("ids_by_severity").Inc()
		s.log.Warn("failed to list alerts by severity",
			slog.String("severity", string(severity)), slog.Any("error", err))
		return nil, nil
	}
	return s.loadSorted(ctx, ids, 0), nil
}

// ListAll returns up to limit alerts across all statuses, newest first.
func (s *Service) ListAll(ctx context.Context, limit int) ([]*models.Alert, error) {
	ids, err := s.store.AllIDs(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("all_ids").Inc()
		s.log.Warn("failed to list alerts", slog.Any("error", err))
		return nil, nil
	}
	return s.loadSorted(ctx, ids, limit), nil
}

// Stats returns per-severity and per-status counts. The total is the sum of
// severity counts; each id lives in exactly one severity set.
func (s *Service) Stats(ctx context.Context) (*models.AlertStats, error) {
	stats := &models.AlertStats{
		BySeverity: make(map[models.Severity]int, len(models.Severities)),
		ByStatus:   make(map[models.Status]int, len(models.Statuses)),
	}

	for _, severity := range models.Severities {
		count, err := s.store.CountBySeverity(ctx, severity)
		if err != nil {
			metrics.StoreErrors.WithLabelValues("count_by_severity").Inc()
			s.log.Warn("failed to count alerts by severity",
				slog.String("severity", string(severity)), slog.Any("error", err))
			count = 0
		}
		stats.BySeverity[severity] = count
		stats.Total += count
	}

	for _, status := range models.Statuses {
		count, err := s.store.CountByStatus(ctx, status)
		if err != nil {
			metrics.StoreErrors.WithLabelValues("count_by_status").Inc()
			s.log.Warn("failed to count alerts by status",
				slog.String("status", string(status)), slog.Any("error", err))
			count = 0
		}
		stats.ByStatus[status] = count
	}

	return stats, nil
}

// TopDrivers ranks drivers by active (OPEN or ESCALATED) alert count,
// descending, with the escalated subset broken out.
func (s *Service) TopDrivers(ctx context.Context, limit int) ([]*models.DriverStanding, error) {
	drivers, err := s.store.DriverIDs(ctx)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("driver_ids").Inc()
		s.log.Warn("failed to list drivers", slog.Any("error", err))
		return nil, nil
	}

	standings := make([]*models.DriverStanding, 0, len(drivers))
	for _, driverID := range drivers {
		ids, err := s.store.IDsByDriver(ctx, driverID)
		if err != nil {
			continue
		}
		standing := &models.DriverStanding{DriverID: driverID}
		for _, id := range ids {
			alert, err := s.store.GetAlert(ctx, id)
			if err != nil || !alert.Active() {
				continue
			}
			standing.OpenCount++
			if alert.Status == models.StatusEscalated {
				standing.EscalatedCount++
			}
		}
		if standing.OpenCount > 0 {
			standings = append(standings, standing)
		}
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].OpenCount != standings[j].OpenCount {
			return standings[i].OpenCount > standings[j].OpenCount
		}
		return standings[i].DriverID < standings[j].DriverID
	})
	if limit > 0 && len(standings) > limit {
		standings = standings[:limit]
	}
	return standings, nil
}

// loadSorted fetches alerts by id, drops the ones that vanished or failed to
// load, sorts newest first, and applies the limit.
func (s *Service) loadSorted(ctx context.Context, ids []string, limit int) []*models.Alert {
	alerts := make([]*models.Alert, 0, len(ids))
	for _, id := range ids {
		alert, err := s.store.GetAlert(ctx, id)
		if err != nil {
			continue
		}
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}

// absentOrDegraded maps a missing record to an absent result and anything
// else to a logged degradation, both surfaced as store.ErrNotFound or nil.
func (s *Service) absentOrDegraded(op, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return store.ErrNotFound
	}
	metrics.StoreErrors.WithLabelValues("get_alert").Inc()
	s.log.Warn("store read failed, treating alert as absent",
		slog.String("op", op), slog.String("alert_id", id), slog.Any("error", err))
	return store.ErrNotFound
}

func (s *Service) publish(ctx context.Context, event string, alert *models.Alert) {
	if err := s.publisher.Publish(ctx, event, alert); err != nil {
		s.log.Warn("failed to publish lifecycle event",
			slog.String("event", event),
			slog.String("alert_id", alert.AlertID),
			slog.Any("error", err))
	}
}
