package entities

import (
	"time"
)

// VerificationLogEntry is an immutable, append-only record of one coverage
// resolution attempt. Entries are never updated or deleted in normal
// operation and feed audit queries and the dashboard rollups.
type VerificationLogEntry struct {
	ID            string `json:"id" db:"id"`
	OpportunityID string `json:"opportunity_id" db:"opportunity_id"`

	NDC        string `json:"ndc" db:"ndc"`
	ContractID string `json:"contract_id" db:"contract_id"`
	PlanID     string `json:"plan_id" db:"plan_id"`
	BIN        string `json:"bin" db:"bin"`
	PCN        string `json:"pcn" db:"pcn"`

	Success       bool   `json:"success" db:"success"`
	Source        string `json:"source" db:"source"`
	FailureReason string `json:"failure_reason" db:"failure_reason"`

	Covered    *bool  `json:"covered" db:"covered"`
	Tier       *int   `json:"tier" db:"tier"`
	Confidence string `json:"confidence" db:"confidence"`

	DurationMs int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// VerificationEvent is published on the event bus after each resolution so
// the external notification path can react without polling
type VerificationEvent struct {
	ID            string    `json:"id"`
	OpportunityID string    `json:"opportunity_id"`
	Success       bool      `json:"success"`
	Source        string    `json:"source"`
	Covered       *bool     `json:"covered"`
	Confidence    string    `json:"confidence"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// VerificationSourceStats is the per-source usage and latency rollup
type VerificationSourceStats struct {
	Source       string  `json:"source" db:"source"`
	Count        int     `json:"count" db:"count"`
	AvgLatencyMs float64 `json:"avg_latency_ms" db:"avg_latency_ms"`
}

// FailureReasonCount is one recurring failure message with its frequency
type FailureReasonCount struct {
	Reason string `json:"reason" db:"reason"`
	Count  int    `json:"count" db:"count"`
}
