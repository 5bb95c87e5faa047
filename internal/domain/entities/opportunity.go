package entities

import (
	"time"
)

// OpportunityStatus is the lifecycle status of a substitution opportunity
type OpportunityStatus string

const (
	OpportunityStatusNotSubmitted OpportunityStatus = "not_submitted"
	OpportunityStatusSubmitted    OpportunityStatus = "submitted"
	OpportunityStatusApproved     OpportunityStatus = "approved"
	OpportunityStatusCompleted    OpportunityStatus = "completed"
	OpportunityStatusDenied       OpportunityStatus = "denied"
	OpportunityStatusOnHold       OpportunityStatus = "on_hold"
)

// OpenStatuses are the lifecycle states still actionable by staff
func OpenStatuses() []OpportunityStatus {
	return []OpportunityStatus{OpportunityStatusNotSubmitted, OpportunityStatusSubmitted, OpportunityStatusOnHold}
}

// Opportunity is a candidate drug substitution for one patient. It is owned
// by the opportunity-generation subsystem; this engine reads it and writes
// the coverage and score fields back onto it.
type Opportunity struct {
	ID        string            `json:"id" db:"id"`
	PatientID string            `json:"patient_id" db:"patient_id"`
	Status    OpportunityStatus `json:"status" db:"status"`

	CurrentDrug     string `json:"current_drug" db:"current_drug"`
	RecommendedDrug string `json:"recommended_drug" db:"recommended_drug"`
	RecommendedNDC  string `json:"recommended_ndc" db:"recommended_ndc"`

	MarginPerFill    *float64 `json:"margin_per_fill" db:"margin_per_fill"`
	AnnualizedMargin *float64 `json:"annualized_margin" db:"annualized_margin"`
	MarginSource     string   `json:"margin_source" db:"margin_source"`

	PrescriberNPI  string `json:"prescriber_npi" db:"prescriber_npi"`
	PrescriberName string `json:"prescriber_name" db:"prescriber_name"`

	// Coverage fields, written by the resolver after each verification.
	// Only the latest coverage state is kept here; history lives in the
	// verification log.
	CoverageVerified    bool       `json:"coverage_verified" db:"coverage_verified"`
	CoverageLastChecked *time.Time `json:"coverage_last_checked" db:"coverage_last_checked"`
	Covered             *bool      `json:"covered" db:"covered"`
	CoverageTier        *int       `json:"coverage_tier" db:"coverage_tier"`
	TierDescription     string     `json:"tier_description" db:"tier_description"`
	PriorAuthRequired   bool       `json:"prior_auth_required" db:"prior_auth_required"`
	StepTherapyRequired bool       `json:"step_therapy_required" db:"step_therapy_required"`
	QuantityLimit       *int       `json:"quantity_limit" db:"quantity_limit"`
	EstimatedCopay      *float64   `json:"estimated_copay" db:"estimated_copay"`
	ReimbursementRate   *float64   `json:"reimbursement_rate" db:"reimbursement_rate"`
	CoverageConfidence  string     `json:"coverage_confidence" db:"coverage_confidence"`
	CoverageSource      string     `json:"coverage_source" db:"coverage_source"`

	// Score summary fields, mirrored from the latest workability score for
	// fast listing and filtering.
	WorkabilityScore *int       `json:"workability_score" db:"workability_score"`
	WorkabilityGrade string     `json:"workability_grade" db:"workability_grade"`
	ScoredAt         *time.Time `json:"scored_at" db:"scored_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// MarginSource tags for where the margin figure came from
const (
	MarginSourceRemittance  = "remittance"
	MarginSourceAcquisition = "acquisition_cost"
	MarginSourceEstimated   = "estimated"
)
