package entities

import (
	"time"
)

// IssueSeverity ranks how strongly an issue should pull attention
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityWarning  IssueSeverity = "warning"
	SeverityInfo     IssueSeverity = "info"
)

// Issue is one structured problem found while scoring an opportunity
type Issue struct {
	Type     string        `json:"type"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// NextAction values, in resolution precedence order
const (
	NextActionBlocked        = "Blocked - review issues"
	NextActionVerifyCoverage = "Verify coverage first"
	NextActionLowPriority    = "Low priority - needs review"
	NextActionAltApproach    = "Consider alternate approach"
	NextActionReadyToSubmit  = "Ready to submit"
)

// WorkabilityScore is the composite estimate of how likely an opportunity is
// to be successfully acted on. One row per opportunity; the latest score
// overwrites any prior one.
type WorkabilityScore struct {
	OpportunityID string `json:"opportunity_id" db:"opportunity_id"`

	Composite int    `json:"composite" db:"composite"`
	Grade     string `json:"grade" db:"grade"`

	CoverageScore    int `json:"coverage_score" db:"coverage_score"`
	MarginScore      int `json:"margin_score" db:"margin_score"`
	PatientScore     int `json:"patient_score" db:"patient_score"`
	PrescriberScore  int `json:"prescriber_score" db:"prescriber_score"`
	DataQualityScore int `json:"data_quality_score" db:"data_quality_score"`

	Issues      []Issue  `json:"issues"`
	MissingData []string `json:"missing_data"`
	Warnings    []string `json:"warnings"`
	Blockers    []string `json:"blockers"`

	NextAction string `json:"next_action" db:"next_action"`

	CalculatedAt time.Time `json:"calculated_at" db:"calculated_at"`
}

// Submittable reports whether the opportunity can be submitted at all
func (s *WorkabilityScore) Submittable() bool {
	return len(s.Blockers) == 0
}

// Stale reports whether the score is older than the freshness window
func (s *WorkabilityScore) Stale(freshness time.Duration, now time.Time) bool {
	return now.Sub(s.CalculatedAt) > freshness
}
