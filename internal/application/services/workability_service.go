package services

import (
	"context"
	"math"
	"time"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	"github.com/pillarrx/rxworkability/pkg/config"
	"github.com/rs/zerolog"
)

const recentFillWindow = 90 * 24 * time.Hour

// annualizedMarginBonusThreshold is the yearly margin above which the margin
// subscore earns its bonus
const annualizedMarginBonusThreshold = 500.0

// WorkabilityService computes the composite workability score for an
// opportunity from coverage state, margin provenance, patient and prescriber
// history, and data completeness.
type WorkabilityService struct {
	opportunities repositories.OpportunityRepository
	prescriptions repositories.PrescriptionRepository
	scores        repositories.WorkabilityRepository
	cfg           config.ScoringConfig
	logger        zerolog.Logger
}

// NewWorkabilityService creates a new workability scorer
func NewWorkabilityService(
	opportunities repositories.OpportunityRepository,
	prescriptions repositories.PrescriptionRepository,
	scores repositories.WorkabilityRepository,
	cfg config.ScoringConfig,
) *WorkabilityService {
	return &WorkabilityService{
		opportunities: opportunities,
		prescriptions: prescriptions,
		scores:        scores,
		cfg:           cfg,
		logger:        observability.ComponentLogger("workability_scorer"),
	}
}

// scoreContext accumulates the narrative outputs while sub-scores are
// computed
type scoreContext struct {
	issues      []entities.Issue
	missingData []string
	warnings    []string
	blockers    []string
}

func (c *scoreContext) issue(issueType string, severity entities.IssueSeverity, message string) {
	c.issues = append(c.issues, entities.Issue{Type: issueType, Severity: severity, Message: message})
}

// CalculateScore computes and persists the workability score for one
// opportunity, overwriting any prior score and mirroring the summary onto
// the opportunity row.
func (s *WorkabilityService) CalculateScore(ctx context.Context, opportunityID string) (*entities.WorkabilityScore, error) {
	opp, err := s.opportunities.GetByID(ctx, opportunityID)
	if err != nil {
		return nil, err
	}

	fills, err := s.prescriptions.FillHistory(ctx, opp.PatientID, recentFillWindow)
	if err != nil {
		return nil, err
	}

	var prescriber *entities.PrescriberHistory
	if opp.PrescriberNPI != "" {
		prescriber, err = s.opportunities.PrescriberHistory(ctx, opp.PrescriberNPI)
		if err != nil {
			return nil, err
		}
	}

	ins := s.insuranceContext(ctx, opp.PatientID)
	score := s.Score(opp, fills, prescriber, ins)

	if err := s.scores.Upsert(ctx, score); err != nil {
		// The score was computed; a storage failure must not fail the
		// operation.
		s.logger.Error().Err(err).Str("opportunity_id", opp.ID).Msg("failed to persist workability score")
	}

	if err := s.opportunities.UpdateScoreSummary(ctx, opp.ID, repositories.ScoreSummary{
		Composite: score.Composite,
		Grade:     score.Grade,
		ScoredAt:  score.CalculatedAt,
	}); err != nil {
		s.logger.Error().Err(err).Str("opportunity_id", opp.ID).Msg("failed to mirror score summary onto opportunity")
	}

	return score, nil
}

func (s *WorkabilityService) insuranceContext(ctx context.Context, patientID string) entities.InsuranceContext {
	prescription, err := s.prescriptions.LatestForPatient(ctx, patientID)
	if err != nil {
		return entities.InsuranceContext{}
	}
	return prescription.InsuranceContext()
}

// Score computes the five sub-scores and the composite without touching
// storage. Exposed for direct use by diagnostics and tests.
func (s *WorkabilityService) Score(opp *entities.Opportunity, fills *entities.PatientFillHistory, prescriber *entities.PrescriberHistory, ins entities.InsuranceContext) *entities.WorkabilityScore {
	sc := &scoreContext{}

	coverage := s.scoreCoverage(opp, sc)
	margin := s.scoreMargin(opp, sc)
	patient := s.scorePatient(fills, sc)
	prescriberScore := s.scorePrescriber(prescriber, sc)
	dataQuality := s.scoreDataQuality(opp, ins, sc)

	composite := int(math.Round(
		float64(coverage)*s.cfg.CoverageWeight +
			float64(margin)*s.cfg.MarginWeight +
			float64(patient)*s.cfg.PatientWeight +
			float64(prescriberScore)*s.cfg.PrescriberWeight +
			float64(dataQuality)*s.cfg.DataQualityWeight,
	))

	score := &entities.WorkabilityScore{
		OpportunityID:    opp.ID,
		Composite:        composite,
		Grade:            s.grade(composite),
		CoverageScore:    coverage,
		MarginScore:      margin,
		PatientScore:     patient,
		PrescriberScore:  prescriberScore,
		DataQualityScore: dataQuality,
		Issues:           sc.issues,
		MissingData:      sc.missingData,
		Warnings:         sc.warnings,
		Blockers:         sc.blockers,
		CalculatedAt:     time.Now(),
	}
	score.NextAction = s.nextAction(opp, score)

	return score
}

// scoreCoverage: base 80 when covered, adjusted by tier and restrictions;
// 10 when explicitly not covered; 30 when checked but unknown; 0 when never
// checked.
func (s *WorkabilityService) scoreCoverage(opp *entities.Opportunity, sc *scoreContext) int {
	if opp.CoverageLastChecked == nil {
		sc.missingData = append(sc.missingData, "coverage_verification")
		return 0
	}

	if opp.Covered == nil {
		return 30
	}

	if !*opp.Covered {
		sc.issue("not_covered", entities.SeverityCritical, "Recommended drug is not covered by the patient's plan")
		sc.blockers = append(sc.blockers, "Recommended drug not covered - substitution cannot be submitted")
		return 10
	}

	score := 80
	if opp.CoverageTier != nil {
		switch {
		case *opp.CoverageTier <= 2:
			score += 20
		case *opp.CoverageTier == 3:
			score += 10
		}
	}
	if opp.PriorAuthRequired {
		score -= 20
	}
	if opp.StepTherapyRequired {
		score -= 15
	}

	return clampScore(score)
}

// scoreMargin: base by provenance of the margin figure, with a bonus for a
// large annualized gain
func (s *WorkabilityService) scoreMargin(opp *entities.Opportunity, sc *scoreContext) int {
	margin := 0.0
	if opp.AnnualizedMargin != nil {
		margin = *opp.AnnualizedMargin
	} else if opp.MarginPerFill != nil {
		margin = *opp.MarginPerFill
	}

	if margin <= 0 {
		sc.issue("low_margin", entities.SeverityWarning, "Estimated margin gain is zero or negative")
		return 20
	}

	var score int
	switch opp.MarginSource {
	case entities.MarginSourceRemittance:
		score = 90
	case entities.MarginSourceAcquisition:
		score = 70
	default:
		sc.warnings = append(sc.warnings, "Margin figure is an estimate, not backed by payer data")
		score = 40
	}

	if opp.AnnualizedMargin != nil && *opp.AnnualizedMargin >= annualizedMarginBonusThreshold {
		score += 10
	}

	return clampScore(score)
}

// scorePatient: fill-history depth plus an adherence proxy, penalized by
// prior refusals
func (s *WorkabilityService) scorePatient(fills *entities.PatientFillHistory, sc *scoreContext) int {
	var score int
	switch {
	case fills.TotalFills > 10:
		score = 60
	case fills.TotalFills > 3:
		score = 40
	default:
		sc.warnings = append(sc.warnings, "Patient has very limited fill history")
		score = 20
	}

	adherence := float64(fills.RecentFills) / 3.0
	if adherence > 1.0 {
		adherence = 1.0
	}
	score += int(math.Round(adherence * 30))

	if fills.Refusals >= 3 {
		sc.warnings = append(sc.warnings, "Patient has refused similar substitutions before")
		score -= 20
	}

	return clampScore(score)
}

// scorePrescriber: historical approval rate on prior submissions; neutral
// when history is too thin to judge
func (s *WorkabilityService) scorePrescriber(history *entities.PrescriberHistory, sc *scoreContext) int {
	if history == nil || history.Submitted < 5 {
		return 50
	}

	rate := history.ApprovalRate()
	switch {
	case rate >= 0.7:
		return 90
	case rate >= 0.5:
		return 70
	case rate >= 0.3:
		sc.warnings = append(sc.warnings, "Prescriber approval rate is below average")
		return 50
	default:
		sc.issue("unreceptive_prescriber", entities.SeverityWarning, "Prescriber rarely approves substitution requests")
		return 30
	}
}

// dataChecklist is the fixed field checklist backing the data-quality
// subscore: three required, three optional-but-useful, three insurance
func dataChecklist(opp *entities.Opportunity, ins entities.InsuranceContext) []struct {
	name    string
	present bool
} {
	hasMargin := opp.AnnualizedMargin != nil || opp.MarginPerFill != nil
	return []struct {
		name    string
		present bool
	}{
		{"recommended_ndc", opp.RecommendedNDC != ""},
		{"current_drug", opp.CurrentDrug != ""},
		{"recommended_drug", opp.RecommendedDrug != ""},
		{"prescriber_npi", opp.PrescriberNPI != ""},
		{"prescriber_name", opp.PrescriberName != ""},
		{"margin", hasMargin},
		{"contract_id", ins.ContractID != ""},
		{"bin", ins.BIN != ""},
		{"pcn", ins.PCN != ""},
	}
}

// scoreDataQuality: fraction of the checklist present, with every missing
// field recorded by name
func (s *WorkabilityService) scoreDataQuality(opp *entities.Opportunity, ins entities.InsuranceContext, sc *scoreContext) int {
	checklist := dataChecklist(opp, ins)

	present := 0
	for _, field := range checklist {
		if field.present {
			present++
		} else {
			sc.missingData = append(sc.missingData, field.name)
		}
	}

	score := int(math.Round(float64(present) / float64(len(checklist)) * 100))
	if score < 50 {
		sc.issue("poor_data_quality", entities.SeverityWarning, "Too many fields are missing to act on this opportunity confidently")
	}

	return score
}

func (s *WorkabilityService) grade(composite int) string {
	switch {
	case composite >= s.cfg.GradeAThreshold:
		return "A"
	case composite >= s.cfg.GradeBThreshold:
		return "B"
	case composite >= s.cfg.GradeCThreshold:
		return "C"
	case composite >= s.cfg.GradeDThreshold:
		return "D"
	default:
		return "F"
	}
}

// nextAction resolves the recommended next step; first match wins
func (s *WorkabilityService) nextAction(opp *entities.Opportunity, score *entities.WorkabilityScore) string {
	switch {
	case len(score.Blockers) > 0:
		return entities.NextActionBlocked
	case opp.CoverageLastChecked == nil:
		return entities.NextActionVerifyCoverage
	case score.Composite < 40:
		return entities.NextActionLowPriority
	case score.PrescriberScore < 40:
		return entities.NextActionAltApproach
	default:
		return entities.NextActionReadyToSubmit
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
