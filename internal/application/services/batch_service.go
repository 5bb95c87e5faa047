package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	"github.com/pillarrx/rxworkability/pkg/config"
	"github.com/rs/zerolog"
)

const staleSelectionLimit = 500

// BatchError pairs a failed opportunity ID with the failure message
type BatchError struct {
	OpportunityID string `json:"opportunity_id"`
	Error         string `json:"error"`
}

// BatchVerifyResult is the settle-all outcome of a verification batch
type BatchVerifyResult struct {
	Total   int                   `json:"total"`
	Results []*VerificationResult `json:"results"`
	Errors  []BatchError          `json:"errors"`
}

// BatchScoreResult is the settle-all outcome of a scoring batch
type BatchScoreResult struct {
	Total  int                          `json:"total"`
	Scores []*entities.WorkabilityScore `json:"scores"`
	Errors []BatchError                 `json:"errors"`
}

// BatchService runs verification and scoring over many opportunities with
// bounded concurrency. One failing item never aborts the rest of the batch.
type BatchService struct {
	resolver      *CoverageResolverService
	scorer        *WorkabilityService
	opportunities repositories.OpportunityRepository
	cfg           config.BatchConfig
	logger        zerolog.Logger
}

// NewBatchService creates a new batch orchestrator
func NewBatchService(
	resolver *CoverageResolverService,
	scorer *WorkabilityService,
	opportunities repositories.OpportunityRepository,
	cfg config.BatchConfig,
) *BatchService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	return &BatchService{
		resolver:      resolver,
		scorer:        scorer,
		opportunities: opportunities,
		cfg:           cfg,
		logger:        observability.ComponentLogger("batch_orchestrator"),
	}
}

// VerifyMany verifies coverage for every listed opportunity, at most
// Concurrency in flight at a time
func (s *BatchService) VerifyMany(ctx context.Context, opportunityIDs []string, opts VerifyOptions) *BatchVerifyResult {
	out := &BatchVerifyResult{Total: len(opportunityIDs)}
	var mu sync.Mutex

	s.forEach(ctx, opportunityIDs, func(ctx context.Context, id string) {
		result, err := s.resolver.VerifyCoverage(ctx, id, opts)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			out.Errors = append(out.Errors, BatchError{OpportunityID: id, Error: err.Error()})
			return
		}
		out.Results = append(out.Results, result)
	})

	s.logger.Info().
		Int("total", out.Total).
		Int("succeeded", len(out.Results)).
		Int("failed", len(out.Errors)).
		Msg("batch verification finished")

	return out
}

// ScoreMany scores every listed opportunity, at most Concurrency in flight
// at a time
func (s *BatchService) ScoreMany(ctx context.Context, opportunityIDs []string) *BatchScoreResult {
	out := &BatchScoreResult{Total: len(opportunityIDs)}
	var mu sync.Mutex

	s.forEach(ctx, opportunityIDs, func(ctx context.Context, id string) {
		score, err := s.scorer.CalculateScore(ctx, id)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			out.Errors = append(out.Errors, BatchError{OpportunityID: id, Error: err.Error()})
			return
		}
		out.Scores = append(out.Scores, score)
	})

	s.logger.Info().
		Int("total", out.Total).
		Int("succeeded", len(out.Scores)).
		Int("failed", len(out.Errors)).
		Msg("batch scoring finished")

	return out
}

// ReverifyStale selects open opportunities whose coverage is missing or
// older than the freshness window and re-verifies them
func (s *BatchService) ReverifyStale(ctx context.Context) (*BatchVerifyResult, error) {
	cutoff := time.Now().Add(-time.Duration(s.cfg.CoverageFreshnessDays) * 24 * time.Hour)
	ids, err := s.opportunities.ListNeedingVerification(ctx, cutoff, staleSelectionLimit)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("selected", len(ids)).Time("cutoff", cutoff).Msg("re-verifying stale coverage")
	return s.VerifyMany(ctx, ids, VerifyOptions{}), nil
}

// RescoreStale selects open opportunities whose score is missing or older
// than the freshness window and rescores them
func (s *BatchService) RescoreStale(ctx context.Context, freshness time.Duration) (*BatchScoreResult, error) {
	cutoff := time.Now().Add(-freshness)
	ids, err := s.opportunities.ListNeedingScoring(ctx, cutoff, staleSelectionLimit)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("selected", len(ids)).Time("cutoff", cutoff).Msg("rescoring stale opportunities")
	return s.ScoreMany(ctx, ids), nil
}

// forEach runs fn over every ID in chunks of the configured concurrency.
// Panics in fn are contained to the item that raised them.
func (s *BatchService) forEach(ctx context.Context, ids []string, fn func(ctx context.Context, id string)) {
	for start := 0; start < len(ids); start += s.cfg.Concurrency {
		end := start + s.cfg.Concurrency
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for _, id := range ids[start:end] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						s.logger.Error().
							Str("opportunity_id", id).
							Str("panic", fmt.Sprintf("%v", r)).
							Msg("batch item panicked")
					}
				}()
				fn(ctx, id)
			}(id)
		}
		wg.Wait()
	}
}
