package coverage

import (
	"context"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/providers"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

// LocalFormularyAdapter resolves coverage from the locally maintained
// formulary table. It accepts whichever key the insurance context can form:
// Medicare-style (contract + optional plan) or commercial-style
// (BIN + optional PCN).
type LocalFormularyAdapter struct {
	repo repositories.FormularyRepository
}

// NewLocalFormularyAdapter creates a new local formulary adapter
func NewLocalFormularyAdapter(repo repositories.FormularyRepository) *LocalFormularyAdapter {
	return &LocalFormularyAdapter{repo: repo}
}

// Name identifies the source
func (a *LocalFormularyAdapter) Name() entities.CoverageSource {
	return entities.SourceLocalCache
}

// Lookup finds the most recently verified matching row. Confidence is high
// for verified rows, medium otherwise.
func (a *LocalFormularyAdapter) Lookup(ctx context.Context, ndc string, ins entities.InsuranceContext) (*entities.CoverageRecord, error) {
	var (
		entry *entities.FormularyEntry
		err   error
	)

	switch {
	case ins.HasMedicareKey():
		entry, err = a.repo.FindByMedicareKey(ctx, ndc, ins.ContractID, ins.PlanID)
	case ins.HasCommercialKey():
		entry, err = a.repo.FindByCommercialKey(ctx, ndc, ins.BIN, ins.PCN)
	default:
		return nil, nil
	}

	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	confidence := entities.ConfidenceMedium
	if entry.Verified {
		confidence = entities.ConfidenceHigh
	}

	covered := entry.Covered
	return &entities.CoverageRecord{
		Covered:             &covered,
		Tier:                entry.Tier,
		TierDescription:     entry.TierDescription,
		PriorAuthRequired:   entry.PriorAuthRequired,
		StepTherapyRequired: entry.StepTherapyRequired,
		QuantityLimit:       entry.QuantityLimit,
		EstimatedCopay:      entry.EstimatedCopay,
		Confidence:          confidence,
		Source:              entities.SourceLocalCache,
	}, nil
}

var _ providers.CoverageSource = (*LocalFormularyAdapter)(nil)
