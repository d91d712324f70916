// Package rules loads the per-source-type rule configuration. The registry
// is built once at startup (or on an explicit reload) and is read-only
// afterwards, so lookups need no locking.
package rules

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fleetwatch/fleetwatch/internal/models"
)

// Rule governs alerts of one source type: the severity they start at, the
// windowed count that escalates them, and how long they live unresolved.
type Rule struct {
	SourceType         string          `yaml:"-"`
	EscalateIfCount    int             `yaml:"escalate_if_count"`
	WindowMins         int             `yaml:"window_mins"`
	InitialSeverity    models.Severity `yaml:"initial_severity"`
	EscalatedSeverity  models.Severity `yaml:"escalated_severity"`
	AutoCloseAfterMins int             `yaml:"auto_close_after_mins"`
	AutoCloseIf        string          `yaml:"auto_close_if"`
}

// Escalates reports whether the rule escalates by count at all.
func (r Rule) Escalates() bool {
	return r.EscalateIfCount > 0
}

// ShouldEscalate reports whether count qualifying alerts meet the threshold.
func (r Rule) ShouldEscalate(count int) bool {
	return r.Escalates() && count >= r.EscalateIfCount
}

// Window returns the trailing counting window as a duration.
func (r Rule) Window() time.Duration {
	return time.Duration(r.WindowMins) * time.Minute
}

// Expired reports whether an alert created at ts has outlived the rule's
// auto-close timeout as of now. Rules without a timeout never expire.
func (r Rule) Expired(ts, now time.Time) bool {
	if r.AutoCloseAfterMins <= 0 {
		return false
	}
	return !now.Before(ts.Add(time.Duration(r.AutoCloseAfterMins) * time.Minute))
}

// Registry is an immutable source-type to rule mapping.
type Registry struct {
	rules map[string]Rule
}

// Load reads the rule document at path. Loading is all-or-nothing: any
// missing file, parse failure, or invalid rule fails the whole registry and
// no partial rule set is ever installed.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from a YAML document keyed by source type.
func Parse(data []byte) (*Registry, error) {
	var doc map[string]Rule
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("rules file defines no rules")
	}

	rules := make(map[string]Rule, len(doc))
	for sourceType, rule := range doc {
		rule.SourceType = sourceType
		if err := validate(rule); err != nil {
			return nil, fmt.Errorf("rule %q: %w", sourceType, err)
		}
		rules[sourceType] = rule
	}

	return &Registry{rules: rules}, nil
}

func validate(r Rule) error {
	if r.InitialSeverity == "" {
		return fmt.Errorf("initial_severity is required")
	}
	if !models.ValidSeverity(r.InitialSeverity) {
		return fmt.Errorf("invalid initial_severity %q", r.InitialSeverity)
	}
	if r.EscalateIfCount < 0 {
		return fmt.Errorf("escalate_if_count must not be negative")
	}
	if r.Escalates() {
		if r.WindowMins <= 0 {
			return fmt.Errorf("window_mins is required when escalate_if_count is set")
		}
		if r.EscalatedSeverity == "" {
			return fmt.Errorf("escalated_severity is required when escalate_if_count is set")
		}
		if !models.ValidSeverity(r.EscalatedSeverity) {
			return fmt.Errorf("invalid escalated_severity %q", r.EscalatedSeverity)
		}
		if !r.EscalatedSeverity.AtLeast(r.InitialSeverity) {
			return fmt.Errorf("escalated_severity %q ranks below initial_severity %q",
				r.EscalatedSeverity, r.InitialSeverity)
		}
	}
	if r.AutoCloseAfterMins < 0 {
		return fmt.Errorf("auto_close_after_mins must not be negative")
	}
	return nil
}

// Get returns the rule for a source type.
func (reg *Registry) Get(sourceType string) (Rule, bool) {
	r, ok := reg.rules[sourceType]
	return r, ok
}

// SourceTypes returns all configured source types, sorted.
func (reg *Registry) SourceTypes() []string {
	types := make([]string, 0, len(reg.rules))
	for t := range reg.rules {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of configured rules.
func (reg *Registry) Len() int {
	return len(reg.rules)
}
