package repositories

import (
	"context"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
)

// WorkabilityRepository defines the keyed score store. Put replaces any
// prior score for the opportunity; only the latest score is meaningful.
type WorkabilityRepository interface {
	// Upsert stores the score, replacing any prior score for the opportunity
	Upsert(ctx context.Context, score *entities.WorkabilityScore) error

	// GetByOpportunityID retrieves the latest score for an opportunity
	GetByOpportunityID(ctx context.Context, opportunityID string) (*entities.WorkabilityScore, error)

	// GradeDistribution counts latest scores per letter grade
	GradeDistribution(ctx context.Context) (map[string]int, error)

	// CountLowGradeOpen counts D/F-graded opportunities still in open
	// lifecycle states
	CountLowGradeOpen(ctx context.Context) (int, error)
}
