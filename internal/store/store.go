// Package store persists alerts and their derived indices. The alert hash
// is the only source of truth; every set and sorted set beside it is a
// rebuildable index.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// ErrNotFound is returned when an alert id has no record. Callers treat it
// as an absent result, not a failure.
var ErrNotFound = errors.New("alert not found")

// Store is the persistence contract for the alert engine.
type Store interface {
	// SaveAlert persists a new alert and registers it in the all/driver/
	// status/severity/timestamp indices.
	SaveAlert(ctx context.Context, alert *models.Alert) error

	// GetAlert loads an alert by id. Returns ErrNotFound for unknown ids.
	GetAlert(ctx context.Context, id string) (*models.Alert, error)

	// ApplyTransition rewrites the alert record and moves its by-status and
	// by-severity index membership from the old values in one atomic step.
	ApplyTransition(ctx context.Context, alert *models.Alert, oldStatus models.Status, oldSeverity models.Severity) error

	// RegisterWindow inserts the alert into the per-(driver,sourceType)
	// window index and prunes entries older than the window.
	RegisterWindow(ctx context.Context, driverID, sourceType, alertID string, ts time.Time, window time.Duration) error

	// CountWindow counts window index members with timestamp >= since,
	// excluding excludeID so re-evaluation never double-counts the subject.
	CountWindow(ctx context.Context, driverID, sourceType, excludeID string, since time.Time) (int, error)

	IDsByStatus(ctx context.Context, status models.Status) ([]string, error)
	IDsBySeverity(ctx context.Context, severity models.Severity) ([]string, error)
	IDsByDriver(ctx context.Context, driverID string) ([]string, error)
	AllIDs(ctx context.Context) ([]string, error)
	DriverIDs(ctx context.Context) ([]string, error)

	CountByStatus(ctx context.Context, status models.Status) (int, error)
	CountBySeverity(ctx context.Context, severity models.Severity) (int, error)

	// Daily analytics snapshots, keyed by YYYY-MM-DD.
	SaveSnapshot(ctx context.Context, snap *models.DailySnapshot) error
	GetSnapshot(ctx context.Context, date string) (*models.DailySnapshot, error)
	SnapshotDates(ctx context.Context) ([]string, error)
	DeleteSnapshot(ctx context.Context, date string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
