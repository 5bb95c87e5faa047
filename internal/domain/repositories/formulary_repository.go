package repositories

import (
	"context"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
)

// FormularyRepository defines lookups against the locally maintained
// formulary table. Both Medicare-style (contract/plan) and commercial-style
// (BIN/PCN) keys are supported; the most recently verified row wins.
type FormularyRepository interface {
	// FindByMedicareKey looks up by NDC and contract id, optionally
	// narrowed by plan id
	FindByMedicareKey(ctx context.Context, ndc, contractID, planID string) (*entities.FormularyEntry, error)

	// FindByCommercialKey looks up by NDC and BIN, optionally narrowed by PCN
	FindByCommercialKey(ctx context.Context, ndc, bin, pcn string) (*entities.FormularyEntry, error)
}

// PricingRepository defines lookups against stored payer remittance data
type PricingRepository interface {
	// FindByNDCAndContract returns the most recent pricing record for the
	// NDC under the contract
	FindByNDCAndContract(ctx context.Context, ndc, contractID string) (*entities.PricingRecord, error)
}
