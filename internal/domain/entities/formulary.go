package entities

import (
	"time"
)

// FormularyEntry is one row of the locally maintained formulary table. Rows
// arrive from periodic imports and from confirmed claim outcomes; a verified
// row has been confirmed against a payer response.
type FormularyEntry struct {
	ID                  string     `json:"id" db:"id"`
	NDC                 string     `json:"ndc" db:"ndc"`
	ContractID          string     `json:"contract_id" db:"contract_id"`
	PlanID              string     `json:"plan_id" db:"plan_id"`
	BIN                 string     `json:"bin" db:"bin"`
	PCN                 string     `json:"pcn" db:"pcn"`
	Covered             bool       `json:"covered" db:"covered"`
	Tier                *int       `json:"tier" db:"tier"`
	TierDescription     string     `json:"tier_description" db:"tier_description"`
	PriorAuthRequired   bool       `json:"prior_auth_required" db:"prior_auth_required"`
	StepTherapyRequired bool       `json:"step_therapy_required" db:"step_therapy_required"`
	QuantityLimit       *int       `json:"quantity_limit" db:"quantity_limit"`
	EstimatedCopay      *float64   `json:"estimated_copay" db:"estimated_copay"`
	Verified            bool       `json:"verified" db:"verified"`
	VerifiedAt          *time.Time `json:"verified_at" db:"verified_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// PricingRecord is one payer remittance/pricing row. Its presence under a
// contract is treated as proof the payer reimburses that NDC.
type PricingRecord struct {
	ID                string    `json:"id" db:"id"`
	NDC               string    `json:"ndc" db:"ndc"`
	ContractID        string    `json:"contract_id" db:"contract_id"`
	ReimbursementRate float64   `json:"reimbursement_rate" db:"reimbursement_rate"`
	PaidAmount        *float64  `json:"paid_amount" db:"paid_amount"`
	RemittanceDate    time.Time `json:"remittance_date" db:"remittance_date"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
