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

// OpportunityAdapter implements OpportunityRepository
type OpportunityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewOpportunityAdapter creates a new opportunity adapter
func NewOpportunityAdapter(client *postgres.Client) repositories.OpportunityRepository {
	return &OpportunityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var opportunityColumns = []interface{}{
	"id", "patient_id", "status",
	"current_drug", "recommended_drug", "recommended_ndc",
	"margin_per_fill", "annualized_margin", "margin_source",
	"prescriber_npi", "prescriber_name",
	"coverage_verified", "coverage_last_checked", "covered", "coverage_tier",
	"tier_description", "prior_auth_required", "step_therapy_required",
	"quantity_limit", "estimated_copay", "reimbursement_rate",
	"coverage_confidence", "coverage_source",
	"workability_score", "workability_grade", "scored_at",
	"created_at", "updated_at",
}

// GetByID retrieves an opportunity by ID
func (a *OpportunityAdapter) GetByID(ctx context.Context, id string) (*entities.Opportunity, error) {
	query, args, err := a.db.Select(opportunityColumns...).
		From("opportunities").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	opp := &entities.Opportunity{}
	var (
		marginSource, prescriberNPI, prescriberName sql.NullString
		tierDescription, confidence, source, grade  sql.NullString
	)

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&opp.ID,
		&opp.PatientID,
		&opp.Status,
		&opp.CurrentDrug,
		&opp.RecommendedDrug,
		&opp.RecommendedNDC,
		&opp.MarginPerFill,
		&opp.AnnualizedMargin,
		&marginSource,
		&prescriberNPI,
		&prescriberName,
		&opp.CoverageVerified,
		&opp.CoverageLastChecked,
		&opp.Covered,
		&opp.CoverageTier,
		&tierDescription,
		&opp.PriorAuthRequired,
		&opp.StepTherapyRequired,
		&opp.QuantityLimit,
		&opp.EstimatedCopay,
		&opp.ReimbursementRate,
		&confidence,
		&source,
		&opp.WorkabilityScore,
		&grade,
		&opp.ScoredAt,
		&opp.CreatedAt,
		&opp.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("opportunity %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get opportunity", err)
	}

	opp.MarginSource = marginSource.String
	opp.PrescriberNPI = prescriberNPI.String
	opp.PrescriberName = prescriberName.String
	opp.TierDescription = tierDescription.String
	opp.CoverageConfidence = confidence.String
	opp.CoverageSource = source.String
	opp.WorkabilityGrade = grade.String

	return opp, nil
}

// UpdateCoverage writes the latest coverage record onto the opportunity
func (a *OpportunityAdapter) UpdateCoverage(ctx context.Context, id string, update repositories.CoverageUpdate) error {
	rec := update.Record
	record := goqu.Record{
		"coverage_verified":     rec.Source != entities.SourceEstimated,
		"coverage_last_checked": update.CheckedAt,
		"covered":               rec.Covered,
		"coverage_tier":         rec.Tier,
		"tier_description":      sql.NullString{String: rec.TierDescription, Valid: rec.TierDescription != ""},
		"prior_auth_required":   rec.PriorAuthRequired,
		"step_therapy_required": rec.StepTherapyRequired,
		"quantity_limit":        rec.QuantityLimit,
		"estimated_copay":       rec.EstimatedCopay,
		"reimbursement_rate":    rec.ReimbursementRate,
		"coverage_confidence":   string(rec.Confidence),
		"coverage_source":       string(rec.Source),
		"updated_at":            time.Now(),
	}

	query, args, err := a.db.Update("opportunities").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build coverage update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update opportunity coverage", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("opportunity %s not found", id))
	}

	return nil
}

// UpdateScoreSummary mirrors the latest workability score onto the opportunity
func (a *OpportunityAdapter) UpdateScoreSummary(ctx context.Context, id string, summary repositories.ScoreSummary) error {
	query, args, err := a.db.Update("opportunities").
		Set(goqu.Record{
			"workability_score": summary.Composite,
			"workability_grade": summary.Grade,
			"scored_at":         summary.ScoredAt,
			"updated_at":        time.Now(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build score summary query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update opportunity score summary", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("opportunity %s not found", id))
	}

	return nil
}

func openStatusStrings() []string {
	statuses := entities.OpenStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// ListNeedingVerification returns open opportunities whose coverage was never
// checked or is older than the cutoff
func (a *OpportunityAdapter) ListNeedingVerification(ctx context.Context, checkedBefore time.Time, limit int) ([]string, error) {
	ds := a.db.Select("id").
		From("opportunities").
		Where(
			goqu.C("status").In(openStatusStrings()),
			goqu.Or(
				goqu.C("coverage_last_checked").IsNull(),
				goqu.C("coverage_last_checked").Lt(checkedBefore),
			),
		).
		Order(goqu.I("coverage_last_checked").Asc().NullsFirst())

	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	return a.listIDs(ctx, ds, "failed to list opportunities needing verification")
}

// ListNeedingScoring returns open opportunities whose score is missing or
// older than the cutoff
func (a *OpportunityAdapter) ListNeedingScoring(ctx context.Context, scoredBefore time.Time, limit int) ([]string, error) {
	ds := a.db.Select("id").
		From("opportunities").
		Where(
			goqu.C("status").In(openStatusStrings()),
			goqu.Or(
				goqu.C("scored_at").IsNull(),
				goqu.C("scored_at").Lt(scoredBefore),
			),
		).
		Order(goqu.I("scored_at").Asc().NullsFirst())

	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	return a.listIDs(ctx, ds, "failed to list opportunities needing scoring")
}

func (a *OpportunityAdapter) listIDs(ctx context.Context, ds *goqu.SelectDataset, failMsg string) ([]string, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(failMsg, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan opportunity id", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// PrescriberHistory aggregates outcomes of the prescriber's prior submitted
// opportunities
func (a *OpportunityAdapter) PrescriberHistory(ctx context.Context, prescriberNPI string) (*entities.PrescriberHistory, error) {
	submittedStatuses := []string{
		string(entities.OpportunityStatusSubmitted),
		string(entities.OpportunityStatusApproved),
		string(entities.OpportunityStatusCompleted),
		string(entities.OpportunityStatusDenied),
	}

	query, args, err := a.db.Select(
		goqu.COUNT("*").As("submitted"),
		goqu.SUM(goqu.Case().When(goqu.C("status").Eq(string(entities.OpportunityStatusApproved)), 1).Else(0)).As("approved"),
		goqu.SUM(goqu.Case().When(goqu.C("status").Eq(string(entities.OpportunityStatusCompleted)), 1).Else(0)).As("completed"),
	).From("opportunities").
		Where(
			goqu.C("prescriber_npi").Eq(prescriberNPI),
			goqu.C("status").In(submittedStatuses),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build prescriber history query", err)
	}

	history := &entities.PrescriberHistory{PrescriberNPI: prescriberNPI}
	var approved, completed sql.NullInt64

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&history.Submitted,
		&approved,
		&completed,
	)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get prescriber history", err)
	}

	history.Approved = int(approved.Int64)
	history.Completed = int(completed.Int64)

	return history, nil
}

// CountOpen counts opportunities in open lifecycle states
func (a *OpportunityAdapter) CountOpen(ctx context.Context) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From("opportunities").
		Where(goqu.C("status").In(openStatusStrings())).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count open opportunities", err)
	}

	return count, nil
}
