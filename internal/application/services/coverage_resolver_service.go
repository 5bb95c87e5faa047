package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/providers"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// VerifyOptions controls a single verification run
type VerifyOptions struct {
	// ForceRefresh drops any cached coverage answer before resolving
	ForceRefresh bool
}

// VerificationResult is the envelope returned to API/CLI callers
type VerificationResult struct {
	OpportunityID  string                   `json:"opportunity_id"`
	Success        bool                     `json:"success"`
	Source         entities.CoverageSource  `json:"source,omitempty"`
	Coverage       *entities.CoverageRecord `json:"coverage,omitempty"`
	ResponseTimeMs int64                    `json:"response_time_ms"`
	Error          string                   `json:"error,omitempty"`
}

// CoverageResolverService orchestrates the coverage sources in priority
// order, stopping at the first answer, and writes the outcome back onto the
// opportunity and into the verification log.
type CoverageResolverService struct {
	sources       []providers.CoverageSource
	opportunities repositories.OpportunityRepository
	prescriptions repositories.PrescriptionRepository
	logRepo       repositories.VerificationLogRepository
	bus           providers.EventBus
	logger        zerolog.Logger
}

// NewCoverageResolverService creates a new resolver. Sources are tried in
// the order given; the bus may be nil when no notification path is wired.
func NewCoverageResolverService(
	sources []providers.CoverageSource,
	opportunities repositories.OpportunityRepository,
	prescriptions repositories.PrescriptionRepository,
	logRepo repositories.VerificationLogRepository,
	bus providers.EventBus,
) *CoverageResolverService {
	return &CoverageResolverService{
		sources:       sources,
		opportunities: opportunities,
		prescriptions: prescriptions,
		logRepo:       logRepo,
		bus:           bus,
		logger:        observability.ComponentLogger("coverage_resolver"),
	}
}

// VerifyCoverage resolves coverage for one opportunity. The result envelope
// is populated even on failure, with the error message and elapsed time.
func (s *CoverageResolverService) VerifyCoverage(ctx context.Context, opportunityID string, opts VerifyOptions) (*VerificationResult, error) {
	start := time.Now()
	result := &VerificationResult{OpportunityID: opportunityID}

	opp, err := s.opportunities.GetByID(ctx, opportunityID)
	if err != nil {
		result.Error = err.Error()
		result.ResponseTimeMs = time.Since(start).Milliseconds()
		return result, err
	}

	ins := s.insuranceContext(ctx, opp.PatientID)

	record, failureReason := s.resolve(ctx, opp.RecommendedNDC, ins, opts.ForceRefresh)
	elapsed := time.Since(start)

	checkedAt := time.Now()
	if err := s.opportunities.UpdateCoverage(ctx, opp.ID, repositories.CoverageUpdate{
		Record:    record,
		CheckedAt: checkedAt,
	}); err != nil {
		// Verification succeeded; a write-back failure must not fail the
		// operation.
		s.logger.Error().Err(err).Str("opportunity_id", opp.ID).Msg("failed to write coverage onto opportunity")
	}

	s.appendLogEntry(ctx, opp, ins, record, failureReason, elapsed)
	s.publishEvent(ctx, opp.ID, record)

	result.Success = true
	result.Source = record.Source
	result.Coverage = record
	result.ResponseTimeMs = elapsed.Milliseconds()
	return result, nil
}

// resolve tries each source in order and returns the first non-nil record,
// or the synthesized estimated record when every source came up empty. The
// second return value carries the failure reason recorded in the log when
// no source answered.
func (s *CoverageResolverService) resolve(ctx context.Context, ndc string, ins entities.InsuranceContext, forceRefresh bool) (*entities.CoverageRecord, string) {
	var lastFailure string

	for _, source := range s.sources {
		if forceRefresh {
			if refreshable, ok := source.(providers.RefreshableSource); ok {
				if err := refreshable.Invalidate(ctx, ndc, ins); err != nil {
					s.logger.Warn().Err(err).Str("source", string(source.Name())).Msg("cache invalidation failed")
				}
			}
		}

		record, err := source.Lookup(ctx, ndc, ins)
		if err != nil {
			// A failing source never aborts resolution; fall through to
			// the next one.
			s.logger.Warn().
				Err(err).
				Str("source", string(source.Name())).
				Str("ndc", ndc).
				Msg("coverage source failed")
			lastFailure = err.Error()
			continue
		}
		if record != nil {
			return record, ""
		}
	}

	record := entities.EstimatedCoverageRecord()
	if lastFailure == "" {
		lastFailure = record.Reason
	}
	return record, lastFailure
}

// insuranceContext resolves insurance identifiers from the patient's most
// recent prescription, tolerating patients with no prescriptions at all
func (s *CoverageResolverService) insuranceContext(ctx context.Context, patientID string) entities.InsuranceContext {
	prescription, err := s.prescriptions.LatestForPatient(ctx, patientID)
	if err != nil {
		s.logger.Debug().Err(err).Str("patient_id", patientID).Msg("no insurance context available")
		return entities.InsuranceContext{}
	}
	return prescription.InsuranceContext()
}

func (s *CoverageResolverService) appendLogEntry(ctx context.Context, opp *entities.Opportunity, ins entities.InsuranceContext, record *entities.CoverageRecord, failureReason string, elapsed time.Duration) {
	entry := &entities.VerificationLogEntry{
		ID:            uuid.NewString(),
		OpportunityID: opp.ID,
		NDC:           opp.RecommendedNDC,
		ContractID:    ins.ContractID,
		PlanID:        ins.PlanID,
		BIN:           ins.BIN,
		PCN:           ins.PCN,
		Success:       record.Source != entities.SourceEstimated,
		Source:        string(record.Source),
		Covered:       record.Covered,
		Tier:          record.Tier,
		Confidence:    string(record.Confidence),
		DurationMs:    elapsed.Milliseconds(),
		CreatedAt:     time.Now(),
	}
	if record.Source == entities.SourceEstimated {
		entry.FailureReason = failureReason
	}

	if err := s.logRepo.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("opportunity_id", opp.ID).Msg("failed to append verification log entry")
	}
}

func (s *CoverageResolverService) publishEvent(ctx context.Context, opportunityID string, record *entities.CoverageRecord) {
	if s.bus == nil {
		return
	}

	event := &entities.VerificationEvent{
		ID:            uuid.NewString(),
		OpportunityID: opportunityID,
		Success:       record.Source != entities.SourceEstimated,
		Source:        string(record.Source),
		Covered:       record.Covered,
		Confidence:    string(record.Confidence),
		OccurredAt:    time.Now(),
	}

	if err := s.bus.Publish(ctx, providers.EventChannelVerifications, event); err != nil {
		s.logger.Warn().Err(err).Str("opportunity_id", opportunityID).Msg("failed to publish verification event")
	}
}
