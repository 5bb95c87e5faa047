package entities

import (
	"time"
)

// Prescription is one ingested fill row. The engine reads these for
// insurance identifiers and fill-history aggregates only.
type Prescription struct {
	ID          string    `json:"id" db:"id"`
	PatientID   string    `json:"patient_id" db:"patient_id"`
	NDC         string    `json:"ndc" db:"ndc"`
	DrugName    string    `json:"drug_name" db:"drug_name"`
	ContractID  string    `json:"contract_id" db:"contract_id"`
	PlanID      string    `json:"plan_id" db:"plan_id"`
	BIN         string    `json:"bin" db:"bin"`
	PCN         string    `json:"pcn" db:"pcn"`
	GroupNumber string    `json:"group_number" db:"group_number"`
	FilledAt    time.Time `json:"filled_at" db:"filled_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// InsuranceContext extracts the claim-routing identifiers from the
// prescription, tolerating any subset being absent
func (p *Prescription) InsuranceContext() InsuranceContext {
	return InsuranceContext{
		ContractID:  p.ContractID,
		PlanID:      p.PlanID,
		BIN:         p.BIN,
		PCN:         p.PCN,
		GroupNumber: p.GroupNumber,
	}
}

// PatientFillHistory aggregates a patient's fill behavior for scoring
type PatientFillHistory struct {
	PatientID   string `json:"patient_id" db:"patient_id"`
	TotalFills  int    `json:"total_fills" db:"total_fills"`
	RecentFills int    `json:"recent_fills" db:"recent_fills"`
	Refusals    int    `json:"refusals" db:"refusals"`
}

// PrescriberHistory aggregates a prescriber's outcomes on prior submissions
type PrescriberHistory struct {
	PrescriberNPI string `json:"prescriber_npi" db:"prescriber_npi"`
	Submitted     int    `json:"submitted" db:"submitted"`
	Approved      int    `json:"approved" db:"approved"`
	Completed     int    `json:"completed" db:"completed"`
}

// ApprovalRate returns the fraction of submitted opportunities that were
// approved or completed, or 0 when nothing was submitted
func (h *PrescriberHistory) ApprovalRate() float64 {
	if h == nil || h.Submitted == 0 {
		return 0
	}
	return float64(h.Approved+h.Completed) / float64(h.Submitted)
}
