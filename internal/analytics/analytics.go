// Package analytics records daily alert statistics and derives simple
// trends from them.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/clock"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/service"
	"github.com/fleetwatch/fleetwatch/internal/store"
)

// retentionDays bounds how many daily snapshots are kept.
const retentionDays = 30

const dateLayout = "2006-01-02"

// Insight summarizes the recent alert trend.
type Insight struct {
	Trend          string             `json:"trend"`
	Message        string             `json:"message"`
	TodayTotal     int                `json:"todayTotal"`
	YesterdayTotal int                `json:"yesterdayTotal"`
	CurrentStats   *models.AlertStats `json:"currentStats,omitempty"`
}

// Service records and reads daily statistics snapshots.
type Service struct {
	store  store.Store
	alerts *service.Service
	clock  clock.Clock
	log    *slog.Logger
}

// New builds the analytics service.
func New(st store.Store, alerts *service.Service, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		store:  st,
		alerts: alerts,
		clock:  clk,
		log:    log.With(slog.String("component", "analytics")),
	}
}

// Snapshot records today's aggregate statistics and prunes snapshots older
// than the retention window.
func (s *Service) Snapshot(ctx context.Context) (*models.DailySnapshot, error) {
	now := s.clock.Now()
	stats, err := s.alerts.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}

	snap := &models.DailySnapshot{
		Date:       now.Format(dateLayout),
		Total:      stats.Total,
		Critical:   stats.BySeverity[models.SeverityCritical],
		Warning:    stats.BySeverity[models.SeverityWarning],
		Info:       stats.BySeverity[models.SeverityInfo],
		Escalated:  stats.ByStatus[models.StatusEscalated],
		AutoClosed: stats.ByStatus[models.StatusAutoClosed],
		Resolved:   stats.ByStatus[models.StatusResolved],
		RecordedAt: now,
	}

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	s.pruneOldSnapshots(ctx, now)
	return snap, nil
}

// TimeSeries returns one snapshot per day for the trailing period, oldest
// first, with zero-filled entries for days that were never recorded.
func (s *Service) TimeSeries(ctx context.Context, days int) ([]models.DailySnapshot, error) {
	if days <= 0 {
		days = 7
	}
	now := s.clock.Now()

	series := make([]models.DailySnapshot, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(dateLayout)
		snap, err := s.store.GetSnapshot(ctx, date)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.log.Warn("failed to read snapshot",
					slog.String("date", date), slog.Any("error", err))
			}
			series = append(series, models.DailySnapshot{Date: date})
			continue
		}
		series = append(series, *snap)
	}
	return series, nil
}

// Insights classifies the 7-day trend as rising, falling, or stable.
func (s *Service) Insights(ctx context.Context) (*Insight, error) {
	series, err := s.TimeSeries(ctx, 7)
	if err != nil {
		return nil, err
	}
	stats, err := s.alerts.Stats(ctx)
	if err != nil {
		return nil, err
	}

	if len(series) < 2 {
		return &Insight{
			Trend:        "stable",
			Message:      "Insufficient data for trend analysis",
			CurrentStats: stats,
		}, nil
	}

	today := series[len(series)-1]
	yesterday := series[len(series)-2]

	insight := &Insight{
		TodayTotal:     today.Total,
		YesterdayTotal: yesterday.Total,
		CurrentStats:   stats,
	}
	switch {
	case today.Total > yesterday.Total:
		insight.Trend = "rising"
		insight.Message = fmt.Sprintf("Alert volume up by %d since yesterday", today.Total-yesterday.Total)
	case today.Total < yesterday.Total:
		insight.Trend = "falling"
		insight.Message = fmt.Sprintf("Alert volume down by %d since yesterday", yesterday.Total-today.Total)
	default:
		insight.Trend = "stable"
		insight.Message = "Alert volume unchanged since yesterday"
	}
	return insight, nil
}

// pruneOldSnapshots drops snapshots beyond the retention window. Failures
// are logged; the next snapshot retries naturally.
func (s *Service) pruneOldSnapshots(ctx context.Context, now time.Time) {
	dates, err := s.store.SnapshotDates(ctx)
	if err != nil {
		s.log.Warn("failed to list snapshots for pruning", slog.Any("error", err))
		return
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	for _, date := range dates {
		day, err := time.Parse(dateLayout, date)
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := s.store.DeleteSnapshot(ctx, date); err != nil {
				s.log.Warn("failed to prune snapshot",
					slog.String("date", date), slog.Any("error", err))
			}
		}
	}
}
