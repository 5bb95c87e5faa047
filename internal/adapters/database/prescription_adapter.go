package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/postgres"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

// PrescriptionAdapter implements PrescriptionRepository
type PrescriptionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPrescriptionAdapter creates a new prescription adapter
func NewPrescriptionAdapter(client *postgres.Client) repositories.PrescriptionRepository {
	return &PrescriptionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// LatestForPatient returns the patient's most recent prescription
func (a *PrescriptionAdapter) LatestForPatient(ctx context.Context, patientID string) (*entities.Prescription, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "ndc", "drug_name",
		"contract_id", "plan_id", "bin", "pcn", "group_number",
		"filled_at", "created_at",
	).From("prescriptions").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("filled_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	p := &entities.Prescription{}
	var drugName, contractID, planID, bin, pcn, groupNumber sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&p.ID,
		&p.PatientID,
		&p.NDC,
		&drugName,
		&contractID,
		&planID,
		&bin,
		&pcn,
		&groupNumber,
		&p.FilledAt,
		&p.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no prescriptions for patient %s", patientID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get latest prescription", err)
	}

	p.DrugName = drugName.String
	p.ContractID = contractID.String
	p.PlanID = planID.String
	p.BIN = bin.String
	p.PCN = pcn.String
	p.GroupNumber = groupNumber.String

	return p, nil
}

// FillHistory aggregates the patient's fills over all time and within the
// recent window, plus historical substitution refusals
func (a *PrescriptionAdapter) FillHistory(ctx context.Context, patientID string, recentWindow time.Duration) (*entities.PatientFillHistory, error) {
	cutoff := time.Now().Add(-recentWindow)

	query, args, err := a.db.Select(
		goqu.COUNT("*").As("total_fills"),
		goqu.SUM(goqu.Case().When(goqu.C("filled_at").Gte(cutoff), 1).Else(0)).As("recent_fills"),
	).From("prescriptions").
		Where(goqu.Ex{"patient_id": patientID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build fill history query", err)
	}

	history := &entities.PatientFillHistory{PatientID: patientID}
	var recent sql.NullInt64

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&history.TotalFills,
		&recent,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get fill history", err)
	}
	history.RecentFills = int(recent.Int64)

	// Refusals come from the opportunity table: substitutions this patient
	// declined in the past.
	refusalQuery, refusalArgs, err := a.db.Select(goqu.COUNT("*")).
		From("opportunities").
		Where(goqu.Ex{
			"patient_id": patientID,
			"status":     string(entities.OpportunityStatusDenied),
		}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build refusal query", err)
	}

	if err := a.client.DB().QueryRowContext(ctx, refusalQuery, refusalArgs...).Scan(&history.Refusals); err != nil {
		return nil, apperrors.NewInternalError("failed to count refusals", err)
	}

	return history, nil
}
