package entities

import (
	"time"
)

// AlertLevel grades an advisory dashboard alert
type AlertLevel string

const (
	AlertLevelCritical AlertLevel = "critical"
	AlertLevelWarning  AlertLevel = "warning"
)

// Alert is an advisory signal for the external notification path. The
// engine never acts on these itself.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// CoverageDashboard is the read-only operational rollup over the
// verification log and score tables
type CoverageDashboard struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	TotalAttempts int     `json:"total_attempts"`
	SuccessCount  int     `json:"success_count"`
	SuccessRate   float64 `json:"success_rate"`

	SourceBreakdown   []VerificationSourceStats `json:"source_breakdown"`
	GradeDistribution map[string]int            `json:"grade_distribution"`
	TopFailures       []FailureReasonCount      `json:"top_failures"`

	OpenOpportunities int `json:"open_opportunities"`
	LowGradeOpenCount int `json:"low_grade_open_count"`

	Alerts []Alert `json:"alerts"`
}

// DiagnosticCheck is one adapter's individual pass/fail result from the
// diagnostic operation, with a remediation hint for support staff
type DiagnosticCheck struct {
	Source  string `json:"source"`
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail"`
	Hint    string `json:"hint,omitempty"`
	Skipped bool   `json:"skipped"`
}
