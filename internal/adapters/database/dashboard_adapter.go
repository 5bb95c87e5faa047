package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/postgres"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

// DashboardAdapter implements DashboardRepository with read-only aggregate
// queries over the verification log
type DashboardAdapter struct {
	db *sqlx.DB
}

// NewDashboardAdapter creates a new dashboard adapter
func NewDashboardAdapter(client *postgres.Client) repositories.DashboardRepository {
	return &DashboardAdapter{
		db: sqlx.NewDb(client.DB(), "postgres"),
	}
}

// VerificationCounts returns total attempts and successes since the cutoff
func (a *DashboardAdapter) VerificationCounts(ctx context.Context, since time.Time) (int, int, error) {
	var counts struct {
		Total     int `db:"total"`
		Successes int `db:"successes"`
	}

	err := a.db.GetContext(ctx, &counts, `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successes
		FROM verification_log
		WHERE created_at >= $1`, since)
	if err != nil {
		return 0, 0, apperrors.NewInternalError("failed to get verification counts", err)
	}

	return counts.Total, counts.Successes, nil
}

// SourceBreakdown returns per-source usage and average latency since the
// cutoff
func (a *DashboardAdapter) SourceBreakdown(ctx context.Context, since time.Time) ([]entities.VerificationSourceStats, error) {
	var stats []entities.VerificationSourceStats

	err := a.db.SelectContext(ctx, &stats, `
		SELECT source,
		       COUNT(*) AS count,
		       COALESCE(AVG(duration_ms), 0) AS avg_latency_ms
		FROM verification_log
		WHERE created_at >= $1
		GROUP BY source
		ORDER BY count DESC`, since)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get source breakdown", err)
	}

	return stats, nil
}

// TopFailureReasons returns the most frequent failure messages since the
// cutoff
func (a *DashboardAdapter) TopFailureReasons(ctx context.Context, since time.Time, limit int) ([]entities.FailureReasonCount, error) {
	var reasons []entities.FailureReasonCount

	err := a.db.SelectContext(ctx, &reasons, `
		SELECT failure_reason AS reason,
		       COUNT(*) AS count
		FROM verification_log
		WHERE created_at >= $1
		  AND success = false
		  AND failure_reason IS NOT NULL
		GROUP BY failure_reason
		ORDER BY count DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get top failure reasons", err)
	}

	return reasons, nil
}
