package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/postgres"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

// VerificationLogAdapter implements VerificationLogRepository. The table is
// append-only; there are no update or delete paths.
type VerificationLogAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewVerificationLogAdapter creates a new verification log adapter
func NewVerificationLogAdapter(client *postgres.Client) repositories.VerificationLogRepository {
	return &VerificationLogAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Append records one resolution attempt
func (a *VerificationLogAdapter) Append(ctx context.Context, entry *entities.VerificationLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	record := goqu.Record{
		"id":             entry.ID,
		"opportunity_id": entry.OpportunityID,
		"ndc":            entry.NDC,
		"contract_id":    sql.NullString{String: entry.ContractID, Valid: entry.ContractID != ""},
		"plan_id":        sql.NullString{String: entry.PlanID, Valid: entry.PlanID != ""},
		"bin":            sql.NullString{String: entry.BIN, Valid: entry.BIN != ""},
		"pcn":            sql.NullString{String: entry.PCN, Valid: entry.PCN != ""},
		"success":        entry.Success,
		"source":         entry.Source,
		"failure_reason": sql.NullString{String: entry.FailureReason, Valid: entry.FailureReason != ""},
		"covered":        entry.Covered,
		"tier":           entry.Tier,
		"confidence":     sql.NullString{String: entry.Confidence, Valid: entry.Confidence != ""},
		"duration_ms":    entry.DurationMs,
		"created_at":     entry.CreatedAt,
	}

	query, args, err := a.db.Insert("verification_log").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to append verification log entry", err)
	}

	return nil
}

// ListForOpportunity returns the audit trail for one opportunity, newest first
func (a *VerificationLogAdapter) ListForOpportunity(ctx context.Context, opportunityID string, limit int) ([]*entities.VerificationLogEntry, error) {
	ds := a.db.Select(
		"id", "opportunity_id", "ndc", "contract_id", "plan_id", "bin", "pcn",
		"success", "source", "failure_reason", "covered", "tier", "confidence",
		"duration_ms", "created_at",
	).From("verification_log").
		Where(goqu.Ex{"opportunity_id": opportunityID}).
		Order(goqu.I("created_at").Desc())

	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list verification log entries", err)
	}
	defer rows.Close()

	var entries []*entities.VerificationLogEntry
	for rows.Next() {
		entry := &entities.VerificationLogEntry{}
		var contractID, planID, bin, pcn, failureReason, confidence sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.OpportunityID,
			&entry.NDC,
			&contractID,
			&planID,
			&bin,
			&pcn,
			&entry.Success,
			&entry.Source,
			&failureReason,
			&entry.Covered,
			&entry.Tier,
			&confidence,
			&entry.DurationMs,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan verification log entry", err)
		}

		entry.ContractID = contractID.String
		entry.PlanID = planID.String
		entry.BIN = bin.String
		entry.PCN = pcn.String
		entry.FailureReason = failureReason.String
		entry.Confidence = confidence.String

		entries = append(entries, entry)
	}

	return entries, nil
}
