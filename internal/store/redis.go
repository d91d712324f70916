package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

const (
	alertPrefix    = "alert:"
	allAlertsKey   = "alerts:all"
	driverPrefix   = "alerts:driver:"
	statusPrefix   = "alerts:status:"
	severityPrefix = "alerts:severity:"
	timestampKey   = "alerts:by_timestamp"
	windowPrefix   = "window:"
	snapshotPrefix = "analytics:daily:"
)

// transitionScript moves an alert's by-status and by-severity membership and
// rewrites its hash fields in a single atomic step, so an index move is never
// observed half-applied.
//
// KEYS: 1=alert hash, 2=old status set, 3=new status set,
// 4=old severity set, 5=new severity set
// ARGV: 1=alert id, then field/value pairs
var transitionScript = redis.NewScript(`
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('SREM', KEYS[4], ARGV[1])
redis.call('SADD', KEYS[5], ARGV[1])
for i = 2, #ARGV - 1, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)

// RedisStore implements Store on a single Redis instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Connect parses a Redis URL and returns a store. Connectivity is not
// checked here: the service boots and degrades even when the store is down,
// so callers probe with Ping and treat failure as a warning.
func Connect(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opt)}, nil
}

// Client exposes the underlying connection for collaborators that share the
// same Redis instance, such as the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping reports store reachability.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveAlert persists a new alert and registers all derived indices.
func (s *RedisStore) SaveAlert(ctx context.Context, alert *models.Alert) error {
	fields, err := alertFields(alert)
	if err != nil {
		return err
	}

	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, alertKey(alert.AlertID), fields)
		pipe.SAdd(ctx, allAlertsKey, alert.AlertID)
		pipe.SAdd(ctx, driverPrefix+alert.DriverID, alert.AlertID)
		pipe.SAdd(ctx, statusPrefix+string(alert.Status), alert.AlertID)
		pipe.SAdd(ctx, severityPrefix+string(alert.Severity), alert.AlertID)
		pipe.ZAdd(ctx, timestampKey, redis.Z{
			Score:  float64(alert.Timestamp.UnixMilli()),
			Member: alert.AlertID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save alert %s: %w", alert.AlertID, err)
	}
	return nil
}

// GetAlert loads an alert by id.
func (s *RedisStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	data, err := s.client.HGetAll(ctx, alertKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return alertFromFields(data)
}

// ApplyTransition runs the transition script: hash rewrite plus the
// status/severity index move as one unit.
func (s *RedisStore) ApplyTransition(ctx context.Context, alert *models.Alert, oldStatus models.Status, oldSeverity models.Severity) error {
	fields, err := alertFields(alert)
	if err != nil {
		return err
	}

	keys := []string{
		alertKey(alert.AlertID),
		statusPrefix + string(oldStatus),
		statusPrefix + string(alert.Status),
		severityPrefix + string(oldSeverity),
		severityPrefix + string(alert.Severity),
	}
	argv := make([]interface{}, 0, 1+2*len(fields))
	argv = append(argv, alert.AlertID)
	for field, value := range fields {
		argv = append(argv, field, value)
	}

	if err := transitionScript.Run(ctx, s.client, keys, argv...).Err(); err != nil {
		return fmt.Errorf("transition alert %s: %w", alert.AlertID, err)
	}
	return nil
}

// RegisterWindow inserts the alert into its window index, then prunes
// entries older than the rule's window so the index never grows unbounded.
func (s *RedisStore) RegisterWindow(ctx context.Context, driverID, sourceType, alertID string, ts time.Time, window time.Duration) error {
	key := windowKey(driverID, sourceType)
	cutoff := ts.Add(-window).UnixMilli()

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(ts.UnixMilli()), Member: alertID})
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("register window %s: %w", key, err)
	}
	return nil
}

// CountWindow counts window members with score >= since, excluding
// excludeID. The subject alert is always counted by the caller instead, so
// fresh creation and re-evaluation produce the same count.
func (s *RedisStore) CountWindow(ctx context.Context, driverID, sourceType, excludeID string, since time.Time) (int, error) {
	key := windowKey(driverID, sourceType)
	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("count window %s: %w", key, err)
	}

	count := 0
	for _, member := range members {
		if member != excludeID {
			count++
		}
	}
	return count, nil
}

// IDsByStatus returns all alert ids currently in a status set.
func (s *RedisStore) IDsByStatus(ctx context.Context, status models.Status) ([]string, error) {
	return s.members(ctx, statusPrefix+string(status))
}

// IDsBySeverity returns all alert ids currently in a severity set.
func (s *RedisStore) IDsBySeverity(ctx context.Context, severity models.Severity) ([]string, error) {
	return s.members(ctx, severityPrefix+string(severity))
}

// IDsByDriver returns all alert ids ever recorded for a driver.
func (s *RedisStore) IDsByDriver(ctx context.Context, driverID string) ([]string, error) {
	return s.members(ctx, driverPrefix+driverID)
}

// AllIDs returns every alert id in the store.
func (s *RedisStore) AllIDs(ctx context.Context) ([]string, error) {
	return s.members(ctx, allAlertsKey)
}

// DriverIDs returns every driver with at least one recorded alert.
func (s *RedisStore) DriverIDs(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, driverPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list driver keys: %w", err)
	}
	drivers := make([]string, 0, len(keys))
	for _, key := range keys {
		drivers = append(drivers, strings.TrimPrefix(key, driverPrefix))
	}
	return drivers, nil
}

// CountByStatus returns the cardinality of a status set.
func (s *RedisStore) CountByStatus(ctx context.Context, status models.Status) (int, error) {
	return s.card(ctx, statusPrefix+string(status))
}

// CountBySeverity returns the cardinality of a severity set.
func (s *RedisStore) CountBySeverity(ctx context.Context, severity models.Severity) (int, error) {
	return s.card(ctx, severityPrefix+string(severity))
}

// SaveSnapshot records one day of alert statistics.
func (s *RedisStore) SaveSnapshot(ctx context.Context, snap *models.DailySnapshot) error {
	fields := map[string]interface{}{
		"date":       snap.Date,
		"total":      strconv.Itoa(snap.Total),
		"critical":   strconv.Itoa(snap.Critical),
		"warning":    strconv.Itoa(snap.Warning),
		"info":       strconv.Itoa(snap.Info),
		"escalated":  strconv.Itoa(snap.Escalated),
		"autoClosed": strconv.Itoa(snap.AutoClosed),
		"resolved":   strconv.Itoa(snap.Resolved),
		"recordedAt": snap.RecordedAt.Format(time.RFC3339Nano),
	}
	if err := s.client.HSet(ctx, snapshotPrefix+snap.Date, fields).Err(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Date, err)
	}
	return nil
}

// GetSnapshot loads one day of statistics. Returns ErrNotFound when the day
// was never recorded.
func (s *RedisStore) GetSnapshot(ctx context.Context, date string) (*models.DailySnapshot, error) {
	data, err := s.client.HGetAll(ctx, snapshotPrefix+date).Result()
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", date, err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}

	snap := &models.DailySnapshot{
		Date:       data["date"],
		Total:      atoi(data["total"]),
		Critical:   atoi(data["critical"]),
		Warning:    atoi(data["warning"]),
		Info:       atoi(data["info"]),
		Escalated:  atoi(data["escalated"]),
		AutoClosed: atoi(data["autoClosed"]),
		Resolved:   atoi(data["resolved"]),
	}
	if t, err := time.Parse(time.RFC3339Nano, data["recordedAt"]); err == nil {
		snap.RecordedAt = t
	}
	return snap, nil
}

// SnapshotDates lists all recorded snapshot dates.
func (s *RedisStore) SnapshotDates(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, snapshotPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshot keys: %w", err)
	}
	dates := make([]string, 0, len(keys))
	for _, key := range keys {
		dates = append(dates, strings.TrimPrefix(key, snapshotPrefix))
	}
	return dates, nil
}

// DeleteSnapshot removes one day of statistics.
func (s *RedisStore) DeleteSnapshot(ctx context.Context, date string) error {
	if err := s.client.Del(ctx, snapshotPrefix+date).Err(); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", date, err)
	}
	return nil
}

func (s *RedisStore) members(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("members %s: %w", key, err)
	}
	return members, nil
}

func (s *RedisStore) card(ctx context.Context, key string) (int, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("card %s: %w", key, err)
	}
	return int(n), nil
}

func alertKey(id string) string {
	return alertPrefix + id
}

func windowKey(driverID, sourceType string) string {
	return windowPrefix + driverID + ":" + sourceType
}

// alertFields flattens an alert into hash fields. Times travel as
// RFC3339Nano strings, metadata as a JSON blob.
func alertFields(alert *models.Alert) (map[string]interface{}, error) {
	metadata := "{}"
	if len(alert.Metadata) > 0 {
		data, err := json.Marshal(alert.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata for %s: %w", alert.AlertID, err)
		}
		metadata = string(data)
	}

	return map[string]interface{}{
		"alertId":       alert.AlertID,
		"sourceType":    alert.SourceType,
		"driverId":      alert.DriverID,
		"vehicleId":     alert.VehicleID,
		"severity":      string(alert.Severity),
		"status":        string(alert.Status),
		"timestamp":     alert.Timestamp.Format(time.RFC3339Nano),
		"metadata":      metadata,
		"escalatedAt":   formatTimePtr(alert.EscalatedAt),
		"resolvedAt":    formatTimePtr(alert.ResolvedAt),
		"autoClosedAt":  formatTimePtr(alert.AutoClosedAt),
		"ruleTriggered": alert.RuleTriggered,
	}, nil
}

func alertFromFields(data map[string]string) (*models.Alert, error) {
	ts, err := time.Parse(time.RFC3339Nano, data["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("decode alert %s timestamp: %w", data["alertId"], err)
	}

	var metadata map[string]string
	if raw := data["metadata"]; raw != "" && raw != "{}" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return nil, fmt.Errorf("decode alert %s metadata: %w", data["alertId"], err)
		}
	}

	escalatedAt, err := parseTimePtr(data["escalatedAt"])
	if err != nil {
		return nil, fmt.Errorf("decode alert %s escalatedAt: %w", data["alertId"], err)
	}
	resolvedAt, err := parseTimePtr(data["resolvedAt"])
	if err != nil {
		return nil, fmt.Errorf("decode alert %s resolvedAt: %w", data["alertId"], err)
	}
	autoClosedAt, err := parseTimePtr(data["autoClosedAt"])
	if err != nil {
		return nil, fmt.Errorf("decode alert %s autoClosedAt: %w", data["alertId"], err)
	}

	return &models.Alert{
		AlertID:       data["alertId"],
		SourceType:    data["sourceType"],
		DriverID:      data["driverId"],
		VehicleID:     data["vehicleId"],
		Severity:      models.Severity(data["severity"]),
		Status:        models.Status(data["status"]),
		Timestamp:     ts,
		Metadata:      metadata,
		EscalatedAt:   escalatedAt,
		ResolvedAt:    resolvedAt,
		AutoClosedAt:  autoClosedAt,
		RuleTriggered: data["ruleTriggered"],
	}, nil
}

// atoi decodes a stored counter, treating absent or malformed values as zero.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ Store = (*RedisStore)(nil)
