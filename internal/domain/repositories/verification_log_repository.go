package repositories

import (
	"context"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
)

// VerificationLogRepository defines the append-only verification audit log.
// Entries are never updated or deleted in normal operation.
type VerificationLogRepository interface {
	// Append records one resolution attempt
	Append(ctx context.Context, entry *entities.VerificationLogEntry) error

	// ListForOpportunity returns the audit trail for one opportunity,
	// newest first
	ListForOpportunity(ctx context.Context, opportunityID string, limit int) ([]*entities.VerificationLogEntry, error)
}
