package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	"github.com/pillarrx/rxworkability/pkg/config"
	"github.com/rs/zerolog"
)

const topFailureLimit = 5

// DashboardService assembles the operational coverage dashboard from the
// verification log and score aggregates, and synthesizes advisory alerts
// from the configured thresholds.
type DashboardService struct {
	dashboards    repositories.DashboardRepository
	scores        repositories.WorkabilityRepository
	opportunities repositories.OpportunityRepository
	cfg           config.DashboardConfig
	logger        zerolog.Logger
}

// NewDashboardService creates a new dashboard aggregator
func NewDashboardService(
	dashboards repositories.DashboardRepository,
	scores repositories.WorkabilityRepository,
	opportunities repositories.OpportunityRepository,
	cfg config.DashboardConfig,
) *DashboardService {
	return &DashboardService{
		dashboards:    dashboards,
		scores:        scores,
		opportunities: opportunities,
		cfg:           cfg,
		logger:        observability.ComponentLogger("coverage_dashboard"),
	}
}

// GetCoverageDashboard builds the rollup over the configured trailing
// window. Aggregate queries that fail leave their section empty rather than
// failing the whole dashboard; only the headline counts are required.
func (s *DashboardService) GetCoverageDashboard(ctx context.Context) (*entities.CoverageDashboard, error) {
	now := time.Now()
	since := now.Add(-time.Duration(s.cfg.WindowDays) * 24 * time.Hour)

	total, successes, err := s.dashboards.VerificationCounts(ctx, since)
	if err != nil {
		return nil, err
	}

	dashboard := &entities.CoverageDashboard{
		WindowStart:   since,
		WindowEnd:     now,
		TotalAttempts: total,
		SuccessCount:  successes,
	}
	if total > 0 {
		dashboard.SuccessRate = float64(successes) / float64(total)
	}

	if breakdown, err := s.dashboards.SourceBreakdown(ctx, since); err != nil {
		s.logger.Warn().Err(err).Msg("source breakdown unavailable")
	} else {
		dashboard.SourceBreakdown = breakdown
	}

	if failures, err := s.dashboards.TopFailureReasons(ctx, since, topFailureLimit); err != nil {
		s.logger.Warn().Err(err).Msg("failure reasons unavailable")
	} else {
		dashboard.TopFailures = failures
	}

	if grades, err := s.scores.GradeDistribution(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("grade distribution unavailable")
	} else {
		dashboard.GradeDistribution = grades
	}

	if open, err := s.opportunities.CountOpen(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("open opportunity count unavailable")
	} else {
		dashboard.OpenOpportunities = open
	}

	if lowGrade, err := s.scores.CountLowGradeOpen(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("low grade count unavailable")
	} else {
		dashboard.LowGradeOpenCount = lowGrade
	}

	dashboard.Alerts = s.synthesizeAlerts(dashboard)

	return dashboard, nil
}

// synthesizeAlerts derives advisory alerts from the assembled rollup. The
// success-rate alerts only fire when there were attempts in the window.
func (s *DashboardService) synthesizeAlerts(d *entities.CoverageDashboard) []entities.Alert {
	var alerts []entities.Alert

	if d.TotalAttempts > 0 {
		switch {
		case d.SuccessRate < s.cfg.CriticalSuccessRate:
			alerts = append(alerts, entities.Alert{
				Level:   entities.AlertLevelCritical,
				Code:    "verification_success_critical",
				Message: fmt.Sprintf("Coverage verification success rate is %.0f%%, below the critical threshold", d.SuccessRate*100),
			})
		case d.SuccessRate < s.cfg.WarningSuccessRate:
			alerts = append(alerts, entities.Alert{
				Level:   entities.AlertLevelWarning,
				Code:    "verification_success_degraded",
				Message: fmt.Sprintf("Coverage verification success rate is %.0f%%, below the warning threshold", d.SuccessRate*100),
			})
		}
	}

	if d.OpenOpportunities > 0 {
		lowGradeRatio := float64(d.LowGradeOpenCount) / float64(d.OpenOpportunities)
		if lowGradeRatio > s.cfg.LowGradeAlertRatio {
			alerts = append(alerts, entities.Alert{
				Level:   entities.AlertLevelWarning,
				Code:    "low_grade_pool",
				Message: fmt.Sprintf("%.0f%% of open opportunities are graded D or F", lowGradeRatio*100),
			})
		}
	}

	return alerts
}
