package entities

// Confidence grades how much trust a coverage answer deserves
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CoverageSource identifies which lookup strategy produced a coverage record
type CoverageSource string

const (
	SourceRemoteAPI   CoverageSource = "remote_api"
	SourceLocalCache  CoverageSource = "local_cache"
	SourcePricingData CoverageSource = "pricing_data"
	SourceEstimated   CoverageSource = "estimated"
)

// InsuranceContext carries the claim-routing identifiers resolved from the
// patient's most recent prescription. Any subset may be absent.
type InsuranceContext struct {
	ContractID  string `json:"contract_id"`
	PlanID      string `json:"plan_id"`
	BIN         string `json:"bin"`
	PCN         string `json:"pcn"`
	GroupNumber string `json:"group_number"`
}

// HasMedicareKey reports whether the context can be matched against a
// Medicare-style formulary key
func (c InsuranceContext) HasMedicareKey() bool {
	return c.ContractID != ""
}

// HasCommercialKey reports whether the context can be matched against a
// BIN/PCN commercial key
func (c InsuranceContext) HasCommercialKey() bool {
	return c.BIN != ""
}

// CoverageRecord is the resolver's normalized answer to "is this drug covered
// under this plan". Covered is tri-state: nil means unknown.
type CoverageRecord struct {
	Covered             *bool          `json:"covered"`
	Tier                *int           `json:"tier"`
	TierDescription     string         `json:"tier_description,omitempty"`
	PriorAuthRequired   bool           `json:"prior_auth_required"`
	StepTherapyRequired bool           `json:"step_therapy_required"`
	QuantityLimit       *int           `json:"quantity_limit,omitempty"`
	EstimatedCopay      *float64       `json:"estimated_copay,omitempty"`
	ReimbursementRate   *float64       `json:"reimbursement_rate,omitempty"`
	Confidence          Confidence     `json:"confidence"`
	Source              CoverageSource `json:"source"`
	Reason              string         `json:"reason,omitempty"`
}

// EstimatedCoverageRecord synthesizes the fallback record used when no
// source produced an answer
func EstimatedCoverageRecord() *CoverageRecord {
	return &CoverageRecord{
		Covered:    nil,
		Confidence: ConfidenceLow,
		Source:     SourceEstimated,
		Reason:     "No formulary data available",
	}
}
