package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

const sampleRules = `
overspeed:
  escalate_if_count: 3
  window_mins: 60
  initial_severity: WARNING
  escalated_severity: CRITICAL
  auto_close_after_mins: 30
feedback_negative:
  escalate_if_count: 2
  window_mins: 1440
  initial_severity: INFO
  escalated_severity: WARNING
document_expiry:
  initial_severity: WARNING
  auto_close_after_mins: 10080
  auto_close_if: document_renewed
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	rule, ok := reg.Get("overspeed")
	require.True(t, ok)
	assert.Equal(t, "overspeed", rule.SourceType)
	assert.Equal(t, 3, rule.EscalateIfCount)
	assert.Equal(t, models.SeverityWarning, rule.InitialSeverity)
	assert.Equal(t, models.SeverityCritical, rule.EscalatedSeverity)
	assert.Equal(t, 60*time.Minute, rule.Window())

	_, ok = reg.Get("unknown_type")
	assert.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "empty document",
			doc:  "",
		},
		{
			name: "missing initial severity",
			doc: `overspeed:
  escalate_if_count: 3
  window_mins: 60
  escalated_severity: CRITICAL`,
		},
		{
			name: "unknown severity",
			doc: `overspeed:
  initial_severity: SEVERE`,
		},
		{
			name: "escalation without window",
			doc: `overspeed:
  escalate_if_count: 3
  initial_severity: WARNING
  escalated_severity: CRITICAL`,
		},
		{
			name: "escalation without escalated severity",
			doc: `overspeed:
  escalate_if_count: 3
  window_mins: 60
  initial_severity: WARNING`,
		},
		{
			name: "escalation lowers severity",
			doc: `overspeed:
  escalate_if_count: 3
  window_mins: 60
  initial_severity: CRITICAL
  escalated_severity: WARNING`,
		},
		{
			name: "negative auto close",
			doc: `overspeed:
  initial_severity: WARNING
  auto_close_after_mins: -5`,
		},
		{
			name: "not yaml",
			doc:  "overspeed: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestRule_ShouldEscalate(t *testing.T) {
	rule := Rule{EscalateIfCount: 3, WindowMins: 60}

	assert.False(t, rule.ShouldEscalate(2))
	assert.True(t, rule.ShouldEscalate(3))
	assert.True(t, rule.ShouldEscalate(4))

	noEscalation := Rule{}
	assert.False(t, noEscalation.Escalates())
	assert.False(t, noEscalation.ShouldEscalate(100))
}

func TestRule_Expired(t *testing.T) {
	rule := Rule{AutoCloseAfterMins: 30}
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, rule.Expired(created, created.Add(29*time.Minute)))
	assert.True(t, rule.Expired(created, created.Add(30*time.Minute)))
	assert.True(t, rule.Expired(created, created.Add(31*time.Minute)))

	forever := Rule{}
	assert.False(t, forever.Expired(created, created.Add(1000*time.Hour)))
}

func TestRegistry_SourceTypes(t *testing.T) {
	reg, err := Parse([]byte(sampleRules))
	require.NoError(t, err)
	assert.Equal(t, []string{"document_expiry", "feedback_negative", "overspeed"}, reg.SourceTypes())
}
