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

// FormularyAdapter implements FormularyRepository over the local formulary
// table
type FormularyAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFormularyAdapter creates a new formulary adapter
func NewFormularyAdapter(client *postgres.Client) repositories.FormularyRepository {
	return &FormularyAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var formularyColumns = []interface{}{
	"id", "ndc", "contract_id", "plan_id", "bin", "pcn",
	"covered", "tier", "tier_description",
	"prior_auth_required", "step_therapy_required",
	"quantity_limit", "estimated_copay",
	"verified", "verified_at", "created_at", "updated_at",
}

// FindByMedicareKey looks up by NDC and contract id, optionally narrowed by
// plan id. The most recently verified row wins.
func (a *FormularyAdapter) FindByMedicareKey(ctx context.Context, ndc, contractID, planID string) (*entities.FormularyEntry, error) {
	ds := a.db.Select(formularyColumns...).
		From("formulary_entries").
		Where(goqu.Ex{
			"ndc":         ndc,
			"contract_id": contractID,
		})

	if planID != "" {
		ds = ds.Where(goqu.Or(
			goqu.C("plan_id").Eq(planID),
			goqu.C("plan_id").Eq(""),
			goqu.C("plan_id").IsNull(),
		))
	}

	return a.findOne(ctx, ds, fmt.Sprintf("no formulary entry for ndc %s under contract %s", ndc, contractID))
}

// FindByCommercialKey looks up by NDC and BIN, optionally narrowed by PCN
func (a *FormularyAdapter) FindByCommercialKey(ctx context.Context, ndc, bin, pcn string) (*entities.FormularyEntry, error) {
	ds := a.db.Select(formularyColumns...).
		From("formulary_entries").
		Where(goqu.Ex{
			"ndc": ndc,
			"bin": bin,
		})

	if pcn != "" {
		ds = ds.Where(goqu.Or(
			goqu.C("pcn").Eq(pcn),
			goqu.C("pcn").Eq(""),
			goqu.C("pcn").IsNull(),
		))
	}

	return a.findOne(ctx, ds, fmt.Sprintf("no formulary entry for ndc %s under bin %s", ndc, bin))
}

func (a *FormularyAdapter) findOne(ctx context.Context, ds *goqu.SelectDataset, notFoundMsg string) (*entities.FormularyEntry, error) {
	query, args, err := ds.
		Order(
			goqu.I("verified").Desc(),
			goqu.I("verified_at").Desc().NullsLast(),
			goqu.I("updated_at").Desc(),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build formulary query", err)
	}

	entry := &entities.FormularyEntry{}
	var planID, bin, pcn, tierDescription sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&entry.ID,
		&entry.NDC,
		&entry.ContractID,
		&planID,
		&bin,
		&pcn,
		&entry.Covered,
		&entry.Tier,
		&tierDescription,
		&entry.PriorAuthRequired,
		&entry.StepTherapyRequired,
		&entry.QuantityLimit,
		&entry.EstimatedCopay,
		&entry.Verified,
		&entry.VerifiedAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get formulary entry", err)
	}

	entry.PlanID = planID.String
	entry.BIN = bin.String
	entry.PCN = pcn.String
	entry.TierDescription = tierDescription.String

	return entry, nil
}
