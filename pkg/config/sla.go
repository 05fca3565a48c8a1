package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedWindow indicates an SLA window string with an unknown unit.
var ErrUnsupportedWindow = errors.New("unsupported_window")

// Comparator directions for SLA thresholds.
const (
	ComparatorLT = "lt"
	ComparatorGT = "gt"
)

// SLAConfig is the list of SLA definitions from sla.yaml.
type SLAConfig struct {
	SLAs []*SLADefinition `yaml:"slas"`
}

// SLADefinition declares one monitored SLA metric.
type SLADefinition struct {
	Name        string  `yaml:"name"`
	Threshold   float64 `yaml:"threshold"`
	Comparator  string  `yaml:"comparator"` // lt or gt
	Window      string  `yaml:"window"`     // e.g. 5m, 15m, 1h
	Severity    string  `yaml:"severity"`
	Description string  `yaml:"description"`
}

// ParseWindow parses an SLA window of the form <int>m or <int>h.
func ParseWindow(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedWindow, s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedWindow, s)
	}
	switch s[len(s)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedWindow, s)
	}
}

// IsBreaching reports whether value is on the wrong side of the threshold:
// an "lt" SLA expects the value to stay below it, a "gt" SLA above it.
func (d *SLADefinition) IsBreaching(value float64) bool {
	switch d.Comparator {
	case ComparatorLT:
		return value >= d.Threshold
	case ComparatorGT:
		return value <= d.Threshold
	default:
		return false
	}
}

// DefaultSLAConfig returns the built-in SLA definitions.
func DefaultSLAConfig() *SLAConfig {
	return &SLAConfig{
		SLAs: []*SLADefinition{
			{Name: "p95_latency_seconds", Threshold: 30, Comparator: ComparatorLT, Window: "5m", Severity: "critical",
				Description: "95th percentile end-to-end processing latency"},
			{Name: "docs_per_hour", Threshold: 100, Comparator: ComparatorGT, Window: "15m", Severity: "warning",
				Description: "Sustained processing throughput"},
			{Name: "error_rate_percent", Threshold: 5, Comparator: ComparatorLT, Window: "5m", Severity: "critical",
				Description: "Share of jobs ending in failed"},
			{Name: "review_queue_depth", Threshold: 50, Comparator: ComparatorLT, Window: "5m", Severity: "warning",
				Description: "Pending human review items"},
			{Name: "sla_breach_percent", Threshold: 10, Comparator: ComparatorLT, Window: "1h", Severity: "warning",
				Description: "Jobs slower than 30s or failed"},
		},
	}
}

func validateSLA(cfg *SLAConfig) error {
	if cfg == nil {
		return fmt.Errorf("sla configuration is nil")
	}
	seen := map[string]struct{}{}
	for _, d := range cfg.SLAs {
		if d.Name == "" {
			return NewValidationError("sla", "<unnamed>", "name", ErrMissingRequiredField)
		}
		if _, dup := seen[d.Name]; dup {
			return NewValidationError("sla", d.Name, "name", fmt.Errorf("duplicate definition"))
		}
		seen[d.Name] = struct{}{}
		if d.Comparator != ComparatorLT && d.Comparator != ComparatorGT {
			return NewValidationError("sla", d.Name, "comparator",
				fmt.Errorf("bad_comparator:%s", d.Comparator))
		}
		if _, err := ParseWindow(d.Window); err != nil {
			return NewValidationError("sla", d.Name, "window", err)
		}
	}
	return nil
}
