package models

import "time"

// Severity classifies how urgent an alert is. Severity only moves upward:
// escalation may raise it, nothing in the engine ever lowers it.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists all severities in descending order of urgency.
var Severities = []Severity{SeverityCritical, SeverityWarning, SeverityInfo}

var severityRank = map[Severity]int{
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is as urgent as other or more so.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Status is the lifecycle state of an alert. OPEN is initial, AUTO_CLOSED
// and RESOLVED are terminal except that a manual resolve always wins.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusEscalated  Status = "ESCALATED"
	StatusAutoClosed Status = "AUTO_CLOSED"
	StatusResolved   Status = "RESOLVED"
)

// Statuses lists all lifecycle states.
var Statuses = []Status{StatusOpen, StatusEscalated, StatusAutoClosed, StatusResolved}

// Alert is one tracked instance of a detected condition for a driver.
// The record itself is the source of truth; every store index is derived.
type Alert struct {
	AlertID       string            `json:"alertId"`
	SourceType    string            `json:"sourceType"`
	DriverID      string            `json:"driverId"`
	VehicleID     string            `json:"vehicleId,omitempty"`
	Severity      Severity          `json:"severity"`
	Status        Status            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	EscalatedAt   *time.Time        `json:"escalatedAt,omitempty"`
	ResolvedAt    *time.Time        `json:"resolvedAt,omitempty"`
	AutoClosedAt  *time.Time        `json:"autoClosedAt,omitempty"`
	RuleTriggered string            `json:"ruleTriggered,omitempty"`
}

// Active reports whether the alert still participates in auto-close and
// driver standing queries (OPEN or ESCALATED).
func (a *Alert) Active() bool {
	return a.Status == StatusOpen || a.Status == StatusEscalated
}

// CreateAlertRequest is the ingestion payload accepted from collaborators.
type CreateAlertRequest struct {
	SourceType string            `json:"sourceType"`
	DriverID   string            `json:"driverId"`
	VehicleID  string            `json:"vehicleId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// AlertStats aggregates index cardinalities for the dashboard.
type AlertStats struct {
	BySeverity map[Severity]int `json:"bySeverity"`
	ByStatus   map[Status]int   `json:"byStatus"`
	Total      int              `json:"total"`
}

// DriverStanding ranks a driver by currently active alerts.
type DriverStanding struct {
	DriverID       string `json:"driverId"`
	OpenCount      int    `json:"openAlertCount"`
	EscalatedCount int    `json:"escalatedCount"`
}

// DailySnapshot is one day of recorded alert statistics.
type DailySnapshot struct {
	Date       string    `json:"date"`
	Total      int       `json:"total"`
	Critical   int       `json:"critical"`
	Warning    int       `json:"warning"`
	Info       int       `json:"info"`
	Escalated  int       `json:"escalated"`
	AutoClosed int       `json:"autoClosed"`
	Resolved   int       `json:"resolved"`
	RecordedAt time.Time `json:"recordedAt,omitempty"`
}

var validSeverities = map[Severity]bool{
	SeverityInfo:     true,
	SeverityWarning:  true,
	SeverityCritical: true,
}

var validStatuses = map[Status]bool{
	StatusOpen:       true,
	StatusEscalated:  true,
	StatusAutoClosed: true,
	StatusResolved:   true,
}

// ValidSeverity reports whether s is a known severity value.
func ValidSeverity(s Severity) bool {
	return validSeverities[s]
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	return validStatuses[s]
}
