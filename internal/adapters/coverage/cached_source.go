package coverage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/providers"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// CachedSource wraps a CoverageSource with read-through TTL memoization,
// keyed by (contract id, plan id, ndc). Only non-nil results are cached:
// formulary data may be added later, so a "no data" answer must not persist.
//
// Used in front of the remote adapter only; the other sources are already
// backed by local tables.
type CachedSource struct {
	inner      providers.CoverageSource
	cache      providers.CacheProvider
	ttlSeconds int
	logger     zerolog.Logger
}

// NewCachedSource creates a caching wrapper around a coverage source
func NewCachedSource(inner providers.CoverageSource, cache providers.CacheProvider, ttlSeconds int) *CachedSource {
	return &CachedSource{
		inner:      inner,
		cache:      cache,
		ttlSeconds: ttlSeconds,
		logger:     observability.ComponentLogger("coverage_cache"),
	}
}

func cacheKey(ndc string, ins entities.InsuranceContext) string {
	return fmt.Sprintf("coverage:%s:%s:%s", ins.ContractID, ins.PlanID, NormalizeNDC(ndc))
}

// Name identifies the wrapped source
func (s *CachedSource) Name() entities.CoverageSource {
	return s.inner.Name()
}

// Lookup returns the cached record when present, otherwise delegates to the
// wrapped source and stores its non-nil result
func (s *CachedSource) Lookup(ctx context.Context, ndc string, ins entities.InsuranceContext) (*entities.CoverageRecord, error) {
	key := cacheKey(ndc, ins)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var record entities.CoverageRecord
		if err := json.Unmarshal(data, &record); err == nil {
			return &record, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding unreadable cached coverage record")
	} else if err != providers.ErrCacheMiss {
		s.logger.Warn().Err(err).Str("key", key).Msg("coverage cache read failed")
	}

	record, err := s.inner.Lookup(ctx, ndc, ins)
	if err != nil || record == nil {
		return record, err
	}

	if data, err := json.Marshal(record); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttlSeconds); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("coverage cache write failed")
		}
	}

	return record, nil
}

// Invalidate drops any cached entry for the key, forcing the next lookup to
// hit the wrapped source
func (s *CachedSource) Invalidate(ctx context.Context, ndc string, ins entities.InsuranceContext) error {
	return s.cache.Delete(ctx, cacheKey(ndc, ins))
}

var _ providers.RefreshableSource = (*CachedSource)(nil)
