package providers

import (
	"context"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
)

// CoverageSource is one lookup strategy answering "is this NDC covered under
// this plan". Sources are tried in priority order by the resolver.
//
// A (nil, nil) return means "no data", including "this source does not
// apply to this insurance context", and must never be conflated with
// "not covered". An error means the source was tried and failed; the
// resolver logs it and falls through to the next source.
type CoverageSource interface {
	// Name identifies the source in logs and verification entries
	Name() entities.CoverageSource

	// Lookup resolves coverage for the NDC under the insurance context
	Lookup(ctx context.Context, ndc string, ins entities.InsuranceContext) (*entities.CoverageRecord, error)
}

// RefreshableSource is implemented by sources that memoize results and can
// drop a cached entry on demand
type RefreshableSource interface {
	CoverageSource

	// Invalidate removes any cached entry for the key
	Invalidate(ctx context.Context, ndc string, ins entities.InsuranceContext) error
}
