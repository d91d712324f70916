package analytics

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/engine"
	"github.com/fleetwatch/fleetwatch/internal/models"
	"github.com/fleetwatch/fleetwatch/internal/rules"
	"github.com/fleetwatch/fleetwatch/internal/service"
	"github.com/fleetwatch/fleetwatch/internal/store"
)

const analyticsRules = `
overspeed:
  escalate_if_count: 3
  window_mins: 60
  initial_severity: WARNING
  escalated_severity: CRITICAL
`

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func setupAnalytics(t *testing.T) (*Service, *service.Service, *store.RedisStore, *fakeClock) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry, err := rules.Parse([]byte(analyticsRules))
	require.NoError(t, err)

	st := store.NewRedisStore(client)
	clk := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	evaluator := engine.NewEvaluator(registry, st, clk, slog.Default())
	alerts := service.NewService(st, registry, evaluator, clk, service.NoopPublisher{}, slog.Default())

	return New(st, alerts, clk, slog.Default()), alerts, st, clk
}

func TestSnapshot(t *testing.T) {
	an, alerts, st, clk := setupAnalytics(t)
	ctx := context.Background()

	_, err := alerts.CreateAlert(ctx, &models.CreateAlertRequest{
		SourceType: "overspeed",
		DriverID:   "driver-1",
	})
	require.NoError(t, err)

	snap, err := an.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", snap.Date)
	assert.Equal(t, 1, snap.Total)
	assert.Equal(t, 1, snap.Warning)
	assert.True(t, clk.now.Equal(snap.RecordedAt))

	stored, err := st.GetSnapshot(ctx, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Total)
}

func TestSnapshot_PrunesOldDays(t *testing.T) {
	an, _, st, _ := setupAnalytics(t)
	ctx := context.Background()

	// 40 days old, beyond the 30 day retention window.
	require.NoError(t, st.SaveSnapshot(ctx, &models.DailySnapshot{Date: "2026-01-29", Total: 5}))
	// 5 days old, kept.
	require.NoError(t, st.SaveSnapshot(ctx, &models.DailySnapshot{Date: "2026-03-05", Total: 3}))

	_, err := an.Snapshot(ctx)
	require.NoError(t, err)

	_, err = st.GetSnapshot(ctx, "2026-01-29")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetSnapshot(ctx, "2026-03-05")
	assert.NoError(t, err)
}

func TestSnapshot_StoreUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry, err := rules.Parse([]byte(analyticsRules))
	require.NoError(t, err)

	st := store.NewRedisStore(client)
	clk := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	evaluator := engine.NewEvaluator(registry, st, clk, slog.Default())
	alerts := service.NewService(st, registry, evaluator, clk, service.NoopPublisher{}, slog.Default())
	an := New(st, alerts, clk, slog.Default())

	mr.Close()
	_, err = an.Snapshot(context.Background())
	require.Error(t, err)
}

func TestTimeSeries_ZeroFillsGaps(t *testing.T) {
	an, _, st, _ := setupAnalytics(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSnapshot(ctx, &models.DailySnapshot{Date: "2026-03-10", Total: 4}))
	require.NoError(t, st.SaveSnapshot(ctx, &models.DailySnapshot{Date: "2026-03-08", Total: 2}))

	series, err := an.TimeSeries(ctx, 3)
	require.NoError(t, err)
	require.Len(t, series, 3)

	// Oldest first, with the missing day zero-filled.
	assert.Equal(t, "2026-03-08", series[0].Date)
	assert.Equal(t, 2, series[0].Total)
	assert.Equal(t, "2026-03-09", series[1].Date)
	assert.Equal(t, 0, series[1].Total)
	assert.Equal(t, "2026-03-10", series[2].Date)
	assert.Equal(t, 4, series[2].Total)
}

func TestInsights(t *testing.T) {
	tests := []struct {
		name      string
		today     int
		yesterday int
		trend     string
	}{
		{name: "rising", today: 8, yesterday: 3, trend: "rising"},
		{name: "falling", today: 1, yesterday: 6, trend: "falling"},
		{name: "stable", today: 4, yesterday: 4, trend: "stable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			an, _, st, _ := setupAnalytics(t)
			ctx := context.Background()

			require.NoError(t, st.SaveSnapshot(ctx, &models.DailySnapshot{Date: "2026-03-10", Total: tt.today}))
			require.NoError(t, st.SaveSnapshot(ctx, &models.DailySnapshot{Date: "2026-03-09", Total: tt.yesterday}))

			insight, err := an.Insights(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.trend, insight.Trend)
			assert.Equal(t, tt.today, insight.TodayTotal)
			assert.Equal(t, tt.yesterday, insight.YesterdayTotal)
			assert.NotNil(t, insight.CurrentStats)
			assert.NotEmpty(t, insight.Message)
		})
	}
}
