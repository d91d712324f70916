package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/rules"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeWindow struct {
	count     int
	err       error
	lastSince time.Time
}

func (w *fakeWindow) CountWindow(_ context.Context, _, _, _ string, since time.Time) (int, error) {
	w.lastSince = since
	return w.count, w.err
}

const evaluatorRules = `
overspeed:
  escalate_if_count: 3
  window_mins: 60
  initial_severity: WARNING
  escalated_severity: CRITICAL
document_expiry:
  initial_severity: WARNING
  auto_close_after_mins: 10080
`

func newTestEvaluator(t *testing.T, windows *fakeWindow, now time.Time) *Evaluator {
	t.Helper()
	registry, err := rules.Parse([]byte(evaluatorRules))
	require.NoError(t, err)
	return NewEvaluator(registry, windows, &fakeClock{now: now}, slog.Default())
}

func TestEvaluate_EscalatesAtThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Two siblings plus the subject alert meets the threshold of three.
	windows := &fakeWindow{count: 2}
	eval := newTestEvaluator(t, windows, now)

	verdict := eval.Evaluate(context.Background(), &models.Alert{
		AlertID:    "alert-3",
		SourceType: "overspeed",
		DriverID:   "driver-1",
	})

	assert.True(t, verdict.ShouldEscalate)
	assert.Equal(t, models.SeverityCritical, verdict.NewSeverity)
	assert.Equal(t, "3 overspeed alerts in last 60 minutes", verdict.Reason)
	assert.True(t, windows.lastSince.Equal(now.Add(-time.Hour)))
}

func TestEvaluate_BelowThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &fakeWindow{count: 1}
	eval := newTestEvaluator(t, windows, now)

	verdict := eval.Evaluate(context.Background(), &models.Alert{
		AlertID:    "alert-2",
		SourceType: "overspeed",
		DriverID:   "driver-1",
	})

	assert.False(t, verdict.ShouldEscalate)
	assert.Empty(t, verdict.Reason)
}

func TestEvaluate_NonEscalatingRule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &fakeWindow{count: 100}
	eval := newTestEvaluator(t, windows, now)

	verdict := eval.Evaluate(context.Background(), &models.Alert{
		AlertID:    "alert-1",
		SourceType: "document_expiry",
		DriverID:   "driver-1",
	})

	assert.False(t, verdict.ShouldEscalate)
}

func TestEvaluate_UnknownSourceType(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eval := newTestEvaluator(t, &fakeWindow{count: 100}, now)

	verdict := eval.Evaluate(context.Background(), &models.Alert{
		AlertID:    "alert-1",
		SourceType: "unknown_type",
		DriverID:   "driver-1",
	})

	assert.False(t, verdict.ShouldEscalate)
}

func TestEvaluate_WindowFailureDegrades(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	windows := &fakeWindow{err: errors.New("connection refused")}
	eval := newTestEvaluator(t, windows, now)

	verdict := eval.Evaluate(context.Background(), &models.Alert{
		AlertID:    "alert-1",
		SourceType: "overspeed",
		DriverID:   "driver-1",
	})

	assert.False(t, verdict.ShouldEscalate)
}
