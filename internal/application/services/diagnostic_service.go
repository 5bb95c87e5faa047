package services

import (
	"context"
	"fmt"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/providers"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// DiagnosticService probes every coverage source individually for one
// opportunity so support staff can see which link in the fallback chain is
// failing and why.
type DiagnosticService struct {
	sources       []providers.CoverageSource
	opportunities repositories.OpportunityRepository
	prescriptions repositories.PrescriptionRepository
	logger        zerolog.Logger
}

// NewDiagnosticService creates a new coverage diagnostic runner. Sources
// must be in the same priority order the resolver uses.
func NewDiagnosticService(
	sources []providers.CoverageSource,
	opportunities repositories.OpportunityRepository,
	prescriptions repositories.PrescriptionRepository,
) *DiagnosticService {
	return &DiagnosticService{
		sources:       sources,
		opportunities: opportunities,
		prescriptions: prescriptions,
		logger:        observability.ComponentLogger("coverage_diagnostics"),
	}
}

// DiagnoseCoverageIssues runs every source against the opportunity's NDC
// and insurance context, independently of the fallback chain, and reports a
// per-source verdict with a remediation hint on failure.
func (s *DiagnosticService) DiagnoseCoverageIssues(ctx context.Context, opportunityID string) ([]entities.DiagnosticCheck, error) {
	opp, err := s.opportunities.GetByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}

	ins := s.insuranceContext(ctx, opp.PatientID)
	checks := make([]entities.DiagnosticCheck, 0, len(s.sources)+1)

	checks = append(checks, s.checkInputs(opp, ins))

	for _, source := range s.sources {
		checks = append(checks, s.checkSource(ctx, source, opp.RecommendedNDC, ins))
	}

	return checks, nil
}

// checkInputs validates the identifiers the sources depend on before any
// source is probed
func (s *DiagnosticService) checkInputs(opp *entities.Opportunity, ins entities.InsuranceContext) entities.DiagnosticCheck {
	check := entities.DiagnosticCheck{Source: "inputs", Passed: true, Detail: "NDC and insurance identifiers present"}

	switch {
	case opp.RecommendedNDC == "":
		check.Passed = false
		check.Detail = "Opportunity has no recommended NDC"
		check.Hint = "Re-run opportunity generation to populate the recommended drug's NDC"
	case !ins.HasMedicareKey() && !ins.HasCommercialKey():
		check.Passed = false
		check.Detail = "Patient has no usable insurance identifiers (contract/plan or BIN/PCN)"
		check.Hint = "Check the most recent prescription ingest for this patient; insurance fields may have failed to parse"
	}

	return check
}

func (s *DiagnosticService) checkSource(ctx context.Context, source providers.CoverageSource, ndc string, ins entities.InsuranceContext) entities.DiagnosticCheck {
	name := string(source.Name())
	check := entities.DiagnosticCheck{Source: name}

	if source.Name() == entities.SourceRemoteAPI && !ins.HasMedicareKey() {
		check.Skipped = true
		check.Detail = "Patient has no Medicare contract/plan pair; the formulary API does not apply"
		return check
	}

	record, err := source.Lookup(ctx, ndc, ins)
	if err != nil {
		check.Detail = fmt.Sprintf("Lookup failed: %v", err)
		check.Hint = s.hintFor(source.Name())
		return check
	}

	if record == nil {
		check.Detail = "Source reachable but returned no data for this drug and plan"
		check.Hint = s.hintFor(source.Name())
		return check
	}

	check.Passed = true
	check.Detail = fmt.Sprintf("Returned a %s-confidence answer", record.Confidence)
	return check
}

func (s *DiagnosticService) hintFor(source entities.CoverageSource) string {
	switch source {
	case entities.SourceRemoteAPI:
		return "Verify the formulary API credentials and the contract/plan pair; check the API status page before retrying"
	case entities.SourceLocalCache:
		return "The local formulary tables may need a refresh from the latest plan files"
	case entities.SourcePricingData:
		return "No adjudicated claims exist for this drug under this contract; this fills in as claims arrive"
	default:
		return ""
	}
}

func (s *DiagnosticService) insuranceContext(ctx context.Context, patientID string) entities.InsuranceContext {
	prescription, err := s.prescriptions.LatestForPatient(ctx, patientID)
	if err != nil {
		s.logger.Debug().Err(err).Str("patient_id", patientID).Msg("no insurance context available")
		return entities.InsuranceContext{}
	}
	return prescription.InsuranceContext()
}
