package repositories

import (
	"context"
	"time"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
)

// CoverageUpdate carries the coverage fields the resolver writes back onto
// an opportunity after a verification run
type CoverageUpdate struct {
	Record    *entities.CoverageRecord
	CheckedAt time.Time
}

// ScoreSummary carries the score fields mirrored onto the opportunity row
// for fast listing and filtering
type ScoreSummary struct {
	Composite int
	Grade     string
	ScoredAt  time.Time
}

// OpportunityRepository defines the interface for opportunity operations.
// The engine only reads opportunities and writes coverage/score fields back.
type OpportunityRepository interface {
	// GetByID retrieves an opportunity by ID
	GetByID(ctx context.Context, id string) (*entities.Opportunity, error)

	// UpdateCoverage writes the latest coverage record onto the opportunity
	UpdateCoverage(ctx context.Context, id string, update CoverageUpdate) error

	// UpdateScoreSummary mirrors the latest workability score onto the opportunity
	UpdateScoreSummary(ctx context.Context, id string, summary ScoreSummary) error

	// ListNeedingVerification returns open opportunities whose coverage was
	// never checked or was last checked before the cutoff
	ListNeedingVerification(ctx context.Context, checkedBefore time.Time, limit int) ([]string, error)

	// ListNeedingScoring returns open opportunities whose score is missing
	// or older than the cutoff
	ListNeedingScoring(ctx context.Context, scoredBefore time.Time, limit int) ([]string, error)

	// PrescriberHistory aggregates outcomes of the prescriber's prior
	// submitted opportunities
	PrescriberHistory(ctx context.Context, prescriberNPI string) (*entities.PrescriberHistory, error)

	// CountOpen counts opportunities in open lifecycle states
	CountOpen(ctx context.Context) (int, error)
}
