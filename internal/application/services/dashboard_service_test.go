package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/pkg/config"
)

func dashboardDefaults() config.DashboardConfig {
	return config.DashboardConfig{
		CriticalSuccessRate: 0.5,
		WarningSuccessRate:  0.8,
		LowGradeAlertRatio:  0.5,
		WindowDays:          7,
	}
}

func dashboardFixture(repo *stubDashboardRepo, scores *stubWorkabilityRepo, opps *stubOpportunityRepo) *DashboardService {
	return NewDashboardService(repo, scores, opps, dashboardDefaults())
}

func TestGetCoverageDashboard_HealthyWindow(t *testing.T) {
	repo := &stubDashboardRepo{
		total:     100,
		successes: 92,
		sources: []entities.VerificationSourceStats{
			{Source: "remote_api", Count: 60, AvgLatencyMs: 420},
			{Source: "local_cache", Count: 32, AvgLatencyMs: 8},
		},
	}
	scores := newStubWorkabilityRepo()
	scores.grades = map[string]int{"A": 40, "B": 30, "C": 20, "D": 8, "F": 2}
	opps := newStubOpportunityRepo()
	opps.openCount = 80
	scores.lowGradeOpen = 10

	dashboard, err := dashboardFixture(repo, scores, opps).GetCoverageDashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100, dashboard.TotalAttempts)
	assert.Equal(t, 92, dashboard.SuccessCount)
	assert.InDelta(t, 0.92, dashboard.SuccessRate, 1e-9)
	assert.Len(t, dashboard.SourceBreakdown, 2)
	assert.Equal(t, 40, dashboard.GradeDistribution["A"])
	assert.Equal(t, 80, dashboard.OpenOpportunities)
	assert.Empty(t, dashboard.Alerts)
}

func TestGetCoverageDashboard_WarningAlert(t *testing.T) {
	repo := &stubDashboardRepo{total: 100, successes: 70}
	dashboard, err := dashboardFixture(repo, newStubWorkabilityRepo(), newStubOpportunityRepo()).GetCoverageDashboard(context.Background())
	require.NoError(t, err)

	require.Len(t, dashboard.Alerts, 1)
	assert.Equal(t, entities.AlertLevelWarning, dashboard.Alerts[0].Level)
	assert.Equal(t, "verification_success_degraded", dashboard.Alerts[0].Code)
}

func TestGetCoverageDashboard_CriticalAlert(t *testing.T) {
	repo := &stubDashboardRepo{total: 100, successes: 30}
	dashboard, err := dashboardFixture(repo, newStubWorkabilityRepo(), newStubOpportunityRepo()).GetCoverageDashboard(context.Background())
	require.NoError(t, err)

	require.Len(t, dashboard.Alerts, 1)
	assert.Equal(t, entities.AlertLevelCritical, dashboard.Alerts[0].Level)
	assert.Equal(t, "verification_success_critical", dashboard.Alerts[0].Code)
}

func TestGetCoverageDashboard_LowGradePoolAlert(t *testing.T) {
	repo := &stubDashboardRepo{total: 10, successes: 10}
	scores := newStubWorkabilityRepo()
	scores.lowGradeOpen = 6
	opps := newStubOpportunityRepo()
	opps.openCount = 10

	dashboard, err := dashboardFixture(repo, scores, opps).GetCoverageDashboard(context.Background())
	require.NoError(t, err)

	require.Len(t, dashboard.Alerts, 1)
	assert.Equal(t, "low_grade_pool", dashboard.Alerts[0].Code)
	assert.Equal(t, entities.AlertLevelWarning, dashboard.Alerts[0].Level)
}

func TestGetCoverageDashboard_EmptyWindowHasNoRateAlerts(t *testing.T) {
	repo := &stubDashboardRepo{total: 0, successes: 0}
	dashboard, err := dashboardFixture(repo, newStubWorkabilityRepo(), newStubOpportunityRepo()).GetCoverageDashboard(context.Background())
	require.NoError(t, err)

	assert.Zero(t, dashboard.SuccessRate)
	assert.Empty(t, dashboard.Alerts)
}

func TestGetCoverageDashboard_ExactlyHalfLowGradeIsNotAlerted(t *testing.T) {
	repo := &stubDashboardRepo{total: 10, successes: 10}
	scores := newStubWorkabilityRepo()
	scores.lowGradeOpen = 5
	opps := newStubOpportunityRepo()
	opps.openCount = 10

	dashboard, err := dashboardFixture(repo, scores, opps).GetCoverageDashboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dashboard.Alerts)
}

func TestGetCoverageDashboard_CountsFailurePropagates(t *testing.T) {
	repo := &stubDashboardRepo{countsErr: errors.New("query failed")}
	_, err := dashboardFixture(repo, newStubWorkabilityRepo(), newStubOpportunityRepo()).GetCoverageDashboard(context.Background())
	assert.Error(t, err)
}
