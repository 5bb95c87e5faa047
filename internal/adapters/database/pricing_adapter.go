package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/postgres"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

// PricingAdapter implements PricingRepository over stored payer remittance
// rows
type PricingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPricingAdapter creates a new pricing adapter
func NewPricingAdapter(client *postgres.Client) repositories.PricingRepository {
	return &PricingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// FindByNDCAndContract returns the most recent pricing record for the NDC
// under the contract
func (a *PricingAdapter) FindByNDCAndContract(ctx context.Context, ndc, contractID string) (*entities.PricingRecord, error) {
	query, args, err := a.db.Select(
		"id", "ndc", "contract_id", "reimbursement_rate",
		"paid_amount", "remittance_date", "created_at",
	).From("pricing_records").
		Where(goqu.Ex{
			"ndc":         ndc,
			"contract_id": contractID,
		}).
		Order(goqu.I("remittance_date").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build pricing query", err)
	}

	record := &entities.PricingRecord{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&record.ID,
		&record.NDC,
		&record.ContractID,
		&record.ReimbursementRate,
		&record.PaidAmount,
		&record.RemittanceDate,
		&record.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no pricing record for ndc %s under contract %s", ndc, contractID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get pricing record", err)
	}

	return record, nil
}
