package coverage

import (
	"context"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/providers"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

// PricingDataAdapter resolves coverage from stored payer remittance data.
// If the payer previously reimbursed this NDC under this contract, the drug
// is de facto covered.
type PricingDataAdapter struct {
	repo repositories.PricingRepository
}

// NewPricingDataAdapter creates a new pricing data adapter
func NewPricingDataAdapter(repo repositories.PricingRepository) *PricingDataAdapter {
	return &PricingDataAdapter{repo: repo}
}

// Name identifies the source
func (a *PricingDataAdapter) Name() entities.CoverageSource {
	return entities.SourcePricingData
}

// Lookup treats any matching remittance row as proof of coverage
func (a *PricingDataAdapter) Lookup(ctx context.Context, ndc string, ins entities.InsuranceContext) (*entities.CoverageRecord, error) {
	if ins.ContractID == "" {
		return nil, nil
	}

	record, err := a.repo.FindByNDCAndContract(ctx, ndc, ins.ContractID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	covered := true
	rate := record.ReimbursementRate
	return &entities.CoverageRecord{
		Covered:           &covered,
		ReimbursementRate: &rate,
		Confidence:        entities.ConfidenceHigh,
		Source:            entities.SourcePricingData,
	}, nil
}

var _ providers.CoverageSource = (*PricingDataAdapter)(nil)
