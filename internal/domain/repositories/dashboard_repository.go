package repositories

import (
	"context"
	"time"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
)

// DashboardRepository defines the read-only aggregate queries over the
// verification log that back the operational dashboard
type DashboardRepository interface {
	// VerificationCounts returns total attempts and successes since the cutoff
	VerificationCounts(ctx context.Context, since time.Time) (total int, successes int, err error)

	// SourceBreakdown returns per-source usage and average latency since
	// the cutoff
	SourceBreakdown(ctx context.Context, since time.Time) ([]entities.VerificationSourceStats, error)

	// TopFailureReasons returns the most frequent failure messages since
	// the cutoff
	TopFailureReasons(ctx context.Context, since time.Time, limit int) ([]entities.FailureReasonCount, error)
}
