// Package events publishes alert lifecycle messages to NATS for downstream
// collaborators (notification fan-out, dashboards). Publishing is optional
// and best-effort; the engine runs fine without a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// Subject constants follow the pattern: {service}.{resource}.{action}
const (
	SubjectAlertsCreated    = "fleetwatch.alerts.created"
	SubjectAlertsEscalated  = "fleetwatch.alerts.escalated"
	SubjectAlertsAutoClosed = "fleetwatch.alerts.auto_closed"
	SubjectAlertsResolved   = "fleetwatch.alerts.resolved"
)

var subjects = map[string]string{
	"created":     SubjectAlertsCreated,
	"escalated":   SubjectAlertsEscalated,
	"auto_closed": SubjectAlertsAutoClosed,
	"resolved":    SubjectAlertsResolved,
}

// AlertEvent is the wire message for a lifecycle transition.
type AlertEvent struct {
	Event     string        `json:"event"`
	Alert     *models.Alert `json:"alert"`
	EmittedAt time.Time     `json:"emittedAt"`
}

// Publisher publishes lifecycle events over a NATS connection.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials the NATS server and returns a publisher.
func Connect(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("fleetwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// Publish sends one lifecycle event. Unknown event names are rejected so a
// typo fails loudly in tests rather than vanishing on an unused subject.
func (p *Publisher) Publish(_ context.Context, event string, alert *models.Alert) error {
	subject, ok := subjects[event]
	if !ok {
		return fmt.Errorf("unknown lifecycle event %q", event)
	}

	data, err := json.Marshal(AlertEvent{
		Event:     event,
		Alert:     alert,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal lifecycle event: %w", err)
	}
	return p.conn.Publish(subject, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}
