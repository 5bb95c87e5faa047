package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/pkg/config"
)

func scoringDefaults() config.ScoringConfig {
	return config.ScoringConfig{
		CoverageWeight:    0.35,
		MarginWeight:      0.25,
		PatientWeight:     0.15,
		PrescriberWeight:  0.15,
		DataQualityWeight: 0.10,
		GradeAThreshold:   80,
		GradeBThreshold:   60,
		GradeCThreshold:   40,
		GradeDThreshold:   20,
	}
}

func scorerFixture() (*WorkabilityService, *stubOpportunityRepo, *stubPrescriptionRepo, *stubWorkabilityRepo) {
	oppRepo := newStubOpportunityRepo()
	rxRepo := &stubPrescriptionRepo{}
	scoreRepo := newStubWorkabilityRepo()
	svc := NewWorkabilityService(oppRepo, rxRepo, scoreRepo, scoringDefaults())
	return svc, oppRepo, rxRepo, scoreRepo
}

// idealOpportunity has every field filled in and the best possible coverage
func idealOpportunity() *entities.Opportunity {
	return &entities.Opportunity{
		ID:                  "opp-1",
		PatientID:           "pat-1",
		Status:              entities.OpportunityStatusNotSubmitted,
		CurrentDrug:         "Lipitor 20mg",
		RecommendedDrug:     "Atorvastatin 20mg",
		RecommendedNDC:      "12345678901",
		PrescriberNPI:       "1234567890",
		PrescriberName:      "Dr. Reyes",
		MarginPerFill:       floatPtr(42.0),
		AnnualizedMargin:    floatPtr(504.0),
		MarginSource:        entities.MarginSourceRemittance,
		CoverageLastChecked: timePtr(time.Now()),
		Covered:             boolPtr(true),
		CoverageTier:        intPtr(2),
	}
}

func fullInsurance() entities.InsuranceContext {
	return entities.InsuranceContext{ContractID: "H1234", PlanID: "001", BIN: "610011", PCN: "IRX"}
}

func TestScore_IdealOpportunity(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	fills := &entities.PatientFillHistory{TotalFills: 24, RecentFills: 3}
	prescriber := &entities.PrescriberHistory{Submitted: 20, Approved: 12, Completed: 4}

	score := svc.Score(idealOpportunity(), fills, prescriber, fullInsurance())

	assert.Equal(t, 100, score.CoverageScore)
	assert.Equal(t, 100, score.MarginScore)
	assert.Equal(t, 90, score.PatientScore)
	assert.Equal(t, 90, score.PrescriberScore)
	assert.Equal(t, 100, score.DataQualityScore)

	assert.Equal(t, 97, score.Composite)
	assert.Equal(t, "A", score.Grade)
	assert.Equal(t, entities.NextActionReadyToSubmit, score.NextAction)
	assert.Empty(t, score.Blockers)
	assert.True(t, score.Submittable())
}

func TestScore_NeverVerifiedCoverage(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	opp := idealOpportunity()
	opp.CoverageLastChecked = nil
	opp.Covered = nil

	score := svc.Score(opp, &entities.PatientFillHistory{}, nil, fullInsurance())

	assert.Equal(t, 0, score.CoverageScore)
	assert.Contains(t, score.MissingData, "coverage_verification")
	assert.Equal(t, entities.NextActionVerifyCoverage, score.NextAction)
}

func TestScore_NotCoveredBlocksSubmission(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	opp := idealOpportunity()
	opp.Covered = boolPtr(false)

	score := svc.Score(opp, &entities.PatientFillHistory{TotalFills: 24, RecentFills: 3}, nil, fullInsurance())

	assert.Equal(t, 10, score.CoverageScore)
	assert.NotEmpty(t, score.Blockers)
	assert.Equal(t, entities.NextActionBlocked, score.NextAction)
	assert.False(t, score.Submittable())

	found := false
	for _, issue := range score.Issues {
		if issue.Severity == entities.SeverityCritical {
			found = true
		}
	}
	assert.True(t, found, "expected a critical issue")
}

func TestScore_CheckedButUnknownCoverage(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	opp := idealOpportunity()
	opp.Covered = nil

	score := svc.Score(opp, &entities.PatientFillHistory{}, nil, fullInsurance())
	assert.Equal(t, 30, score.CoverageScore)
}

func TestScore_CoverageRestrictionsReduceScore(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	opp := idealOpportunity()
	opp.CoverageTier = intPtr(3)
	opp.PriorAuthRequired = true
	opp.StepTherapyRequired = true

	score := svc.Score(opp, &entities.PatientFillHistory{}, nil, fullInsurance())

	// 80 + 10 (tier 3) - 20 (PA) - 15 (step therapy)
	assert.Equal(t, 55, score.CoverageScore)
}

func TestScore_MarginProvenance(t *testing.T) {
	svc, _, _, _ := scorerFixture()
	fills := &entities.PatientFillHistory{}

	opp := idealOpportunity()
	opp.AnnualizedMargin = floatPtr(300.0)

	opp.MarginSource = entities.MarginSourceRemittance
	assert.Equal(t, 90, svc.Score(opp, fills, nil, fullInsurance()).MarginScore)

	opp.MarginSource = entities.MarginSourceAcquisition
	assert.Equal(t, 70, svc.Score(opp, fills, nil, fullInsurance()).MarginScore)

	opp.MarginSource = entities.MarginSourceEstimated
	score := svc.Score(opp, fills, nil, fullInsurance())
	assert.Equal(t, 40, score.MarginScore)
	assert.NotEmpty(t, score.Warnings)
}

func TestScore_NegativeMargin(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	opp := idealOpportunity()
	opp.MarginPerFill = floatPtr(-3.0)
	opp.AnnualizedMargin = nil

	score := svc.Score(opp, &entities.PatientFillHistory{}, nil, fullInsurance())
	assert.Equal(t, 20, score.MarginScore)
}

func TestScore_PatientHistoryTiers(t *testing.T) {
	svc, _, _, _ := scorerFixture()
	opp := idealOpportunity()
	ins := fullInsurance()

	// Deep history, fully adherent
	score := svc.Score(opp, &entities.PatientFillHistory{TotalFills: 15, RecentFills: 3}, nil, ins)
	assert.Equal(t, 90, score.PatientScore)

	// Moderate history, partial adherence
	score = svc.Score(opp, &entities.PatientFillHistory{TotalFills: 5, RecentFills: 1}, nil, ins)
	assert.Equal(t, 50, score.PatientScore)

	// Thin history
	score = svc.Score(opp, &entities.PatientFillHistory{TotalFills: 1}, nil, ins)
	assert.Equal(t, 20, score.PatientScore)

	// Repeated refusals penalized
	score = svc.Score(opp, &entities.PatientFillHistory{TotalFills: 15, RecentFills: 3, Refusals: 3}, nil, ins)
	assert.Equal(t, 70, score.PatientScore)
}

func TestScore_PrescriberApprovalTiers(t *testing.T) {
	svc, _, _, _ := scorerFixture()
	opp := idealOpportunity()
	fills := &entities.PatientFillHistory{}
	ins := fullInsurance()

	// Too few submissions to judge
	assert.Equal(t, 50, svc.Score(opp, fills, &entities.PrescriberHistory{Submitted: 4, Approved: 4}, ins).PrescriberScore)
	assert.Equal(t, 50, svc.Score(opp, fills, nil, ins).PrescriberScore)

	assert.Equal(t, 90, svc.Score(opp, fills, &entities.PrescriberHistory{Submitted: 10, Approved: 7}, ins).PrescriberScore)
	assert.Equal(t, 70, svc.Score(opp, fills, &entities.PrescriberHistory{Submitted: 10, Approved: 5}, ins).PrescriberScore)
	assert.Equal(t, 50, svc.Score(opp, fills, &entities.PrescriberHistory{Submitted: 10, Approved: 3}, ins).PrescriberScore)
	assert.Equal(t, 30, svc.Score(opp, fills, &entities.PrescriberHistory{Submitted: 10, Approved: 1}, ins).PrescriberScore)
}

func TestScore_DataQualityChecklist(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	// Only NDC and current drug present: 2 of 9 fields
	opp := &entities.Opportunity{
		ID:                  "opp-2",
		RecommendedNDC:      "12345678901",
		CurrentDrug:         "Lipitor 20mg",
		CoverageLastChecked: timePtr(time.Now()),
		Covered:             boolPtr(true),
	}

	score := svc.Score(opp, &entities.PatientFillHistory{}, nil, entities.InsuranceContext{})

	assert.Equal(t, 22, score.DataQualityScore)
	assert.Contains(t, score.MissingData, "recommended_drug")
	assert.Contains(t, score.MissingData, "prescriber_npi")
	assert.Contains(t, score.MissingData, "bin")
	assert.NotContains(t, score.MissingData, "recommended_ndc")

	found := false
	for _, issue := range score.Issues {
		if issue.Type == "poor_data_quality" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGrade_Boundaries(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	assert.Equal(t, "A", svc.grade(80))
	assert.Equal(t, "B", svc.grade(79))
	assert.Equal(t, "B", svc.grade(60))
	assert.Equal(t, "C", svc.grade(59))
	assert.Equal(t, "C", svc.grade(40))
	assert.Equal(t, "D", svc.grade(39))
	assert.Equal(t, "D", svc.grade(20))
	assert.Equal(t, "F", svc.grade(19))
	assert.Equal(t, "F", svc.grade(0))
}

func TestScore_LowCompositeIsLowPriority(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	// Verified but weak on every other factor
	opp := &entities.Opportunity{
		ID:                  "opp-3",
		CoverageLastChecked: timePtr(time.Now()),
		MarginSource:        entities.MarginSourceEstimated,
	}

	score := svc.Score(opp, &entities.PatientFillHistory{}, nil, entities.InsuranceContext{})

	assert.Less(t, score.Composite, 40)
	assert.Equal(t, entities.NextActionLowPriority, score.NextAction)
}

func TestScore_UnreceptivePrescriberSuggestsAlternate(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	opp := idealOpportunity()
	fills := &entities.PatientFillHistory{TotalFills: 24, RecentFills: 3}
	prescriber := &entities.PrescriberHistory{Submitted: 10, Approved: 1}

	score := svc.Score(opp, fills, prescriber, fullInsurance())

	assert.GreaterOrEqual(t, score.Composite, 40)
	assert.Equal(t, 30, score.PrescriberScore)
	assert.Equal(t, entities.NextActionAltApproach, score.NextAction)
}

func TestCalculateScore_PersistsAndMirrors(t *testing.T) {
	svc, oppRepo, rxRepo, scoreRepo := scorerFixture()

	oppRepo.opportunities["opp-1"] = idealOpportunity()
	oppRepo.prescriber = &entities.PrescriberHistory{Submitted: 20, Approved: 16}
	rxRepo.fills = &entities.PatientFillHistory{TotalFills: 24, RecentFills: 3}
	rxRepo.latest = &entities.Prescription{PatientID: "pat-1", ContractID: "H1234", PlanID: "001", BIN: "610011", PCN: "IRX"}

	score, err := svc.CalculateScore(context.Background(), "opp-1")
	require.NoError(t, err)

	stored, ok := scoreRepo.scores["opp-1"]
	require.True(t, ok)
	assert.Equal(t, score.Composite, stored.Composite)

	summary, ok := oppRepo.scoreSummaries["opp-1"]
	require.True(t, ok)
	assert.Equal(t, score.Composite, summary.Composite)
	assert.Equal(t, score.Grade, summary.Grade)
}

func TestCalculateScore_UpsertFailureStillReturnsScore(t *testing.T) {
	svc, oppRepo, rxRepo, scoreRepo := scorerFixture()

	oppRepo.opportunities["opp-1"] = idealOpportunity()
	rxRepo.fills = &entities.PatientFillHistory{TotalFills: 24, RecentFills: 3}
	scoreRepo.upsertErr = errors.New("insert failed")

	score, err := svc.CalculateScore(context.Background(), "opp-1")
	require.NoError(t, err)
	assert.NotNil(t, score)
}

func TestCalculateScore_UnknownOpportunity(t *testing.T) {
	svc, _, _, _ := scorerFixture()

	_, err := svc.CalculateScore(context.Background(), "missing")
	assert.Error(t, err)
}
