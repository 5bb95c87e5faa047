package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/postgres"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

// WorkabilityAdapter implements WorkabilityRepository as a keyed store:
// one row per opportunity, the latest score replaces any prior one.
type WorkabilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewWorkabilityAdapter creates a new workability score adapter
func NewWorkabilityAdapter(client *postgres.Client) repositories.WorkabilityRepository {
	return &WorkabilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Upsert stores the score, replacing any prior score for the opportunity
func (a *WorkabilityAdapter) Upsert(ctx context.Context, score *entities.WorkabilityScore) error {
	issues, err := marshalJSON(score.Issues)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal issues", err)
	}
	missingData, err := marshalJSON(score.MissingData)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal missing data", err)
	}
	warnings, err := marshalJSON(score.Warnings)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal warnings", err)
	}
	blockers, err := marshalJSON(score.Blockers)
	if err != nil {
		return apperrors.NewInternalError("failed to marshal blockers", err)
	}

	record := goqu.Record{
		"opportunity_id":     score.OpportunityID,
		"composite":          score.Composite,
		"grade":              score.Grade,
		"coverage_score":     score.CoverageScore,
		"margin_score":       score.MarginScore,
		"patient_score":      score.PatientScore,
		"prescriber_score":   score.PrescriberScore,
		"data_quality_score": score.DataQualityScore,
		"issues":             issues,
		"missing_data":       missingData,
		"warnings":           warnings,
		"blockers":           blockers,
		"next_action":        score.NextAction,
		"calculated_at":      score.CalculatedAt,
	}

	update := goqu.Record{}
	for k, v := range record {
		if k == "opportunity_id" {
			continue
		}
		update[k] = v
	}

	query, args, err := a.db.Insert("workability_scores").
		Rows(record).
		OnConflict(goqu.DoUpdate("opportunity_id", update)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert workability score", err)
	}

	return nil
}

// GetByOpportunityID retrieves the latest score for an opportunity
func (a *WorkabilityAdapter) GetByOpportunityID(ctx context.Context, opportunityID string) (*entities.WorkabilityScore, error) {
	query, args, err := a.db.Select(
		"opportunity_id", "composite", "grade",
		"coverage_score", "margin_score", "patient_score",
		"prescriber_score", "data_quality_score",
		"issues", "missing_data", "warnings", "blockers",
		"next_action", "calculated_at",
	).From("workability_scores").
		Where(goqu.Ex{"opportunity_id": opportunityID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	score := &entities.WorkabilityScore{}
	var issues, missingData, warnings, blockers []byte

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&score.OpportunityID,
		&score.Composite,
		&score.Grade,
		&score.CoverageScore,
		&score.MarginScore,
		&score.PatientScore,
		&score.PrescriberScore,
		&score.DataQualityScore,
		&issues,
		&missingData,
		&warnings,
		&blockers,
		&score.NextAction,
		&score.CalculatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no workability score for opportunity %s", opportunityID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get workability score", err)
	}

	if err := json.Unmarshal(issues, &score.Issues); err != nil {
		return nil, apperrors.NewInternalError("failed to unmarshal issues", err)
	}
	if err := json.Unmarshal(missingData, &score.MissingData); err != nil {
		return nil, apperrors.NewInternalError("failed to unmarshal missing data", err)
	}
	if err := json.Unmarshal(warnings, &score.Warnings); err != nil {
		return nil, apperrors.NewInternalError("failed to unmarshal warnings", err)
	}
	if err := json.Unmarshal(blockers, &score.Blockers); err != nil {
		return nil, apperrors.NewInternalError("failed to unmarshal blockers", err)
	}

	return score, nil
}

// GradeDistribution counts latest scores per letter grade
func (a *WorkabilityAdapter) GradeDistribution(ctx context.Context) (map[string]int, error) {
	query, args, err := a.db.Select("grade", goqu.COUNT("*").As("count")).
		From("workability_scores").
		GroupBy("grade").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build grade distribution query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get grade distribution", err)
	}
	defer rows.Close()

	distribution := make(map[string]int)
	for rows.Next() {
		var grade string
		var count int
		if err := rows.Scan(&grade, &count); err != nil {
			return nil, apperrors.NewInternalError("failed to scan grade count", err)
		}
		distribution[grade] = count
	}

	return distribution, nil
}

// CountLowGradeOpen counts D/F-graded opportunities still in open lifecycle
// states
func (a *WorkabilityAdapter) CountLowGradeOpen(ctx context.Context) (int, error) {
	query, args, err := a.db.Select(goqu.COUNT("*")).
		From(goqu.T("workability_scores").As("s")).
		Join(
			goqu.T("opportunities").As("o"),
			goqu.On(goqu.I("s.opportunity_id").Eq(goqu.I("o.id"))),
		).
		Where(
			goqu.I("s.grade").In([]string{"D", "F"}),
			goqu.I("o.status").In(openStatusStrings()),
		).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build low grade count query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count low grade opportunities", err)
	}

	return count, nil
}
