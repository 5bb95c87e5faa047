package services

import (
	"context"
	"sync"
	"time"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/repositories"
)

type stubOpportunityRepo struct {
	mu sync.Mutex

	opportunities map[string]*entities.Opportunity
	getErr        map[string]error

	coverageUpdates map[string]repositories.CoverageUpdate
	updateErr       error

	scoreSummaries map[string]repositories.ScoreSummary

	needVerification []string
	needScoring      []string
	prescriber       *entities.PrescriberHistory
	openCount        int
}

func newStubOpportunityRepo() *stubOpportunityRepo {
	return &stubOpportunityRepo{
		opportunities:   make(map[string]*entities.Opportunity),
		getErr:          make(map[string]error),
		coverageUpdates: make(map[string]repositories.CoverageUpdate),
		scoreSummaries:  make(map[string]repositories.ScoreSummary),
	}
}

func (r *stubOpportunityRepo) GetByID(ctx context.Context, id string) (*entities.Opportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.getErr[id]; ok {
		return nil, err
	}
	if opp, ok := r.opportunities[id]; ok {
		return opp, nil
	}
	return nil, errNotFound(id)
}

func (r *stubOpportunityRepo) UpdateCoverage(ctx context.Context, id string, update repositories.CoverageUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.coverageUpdates[id] = update
	return nil
}

func (r *stubOpportunityRepo) UpdateScoreSummary(ctx context.Context, id string, summary repositories.ScoreSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scoreSummaries[id] = summary
	return nil
}

func (r *stubOpportunityRepo) ListNeedingVerification(ctx context.Context, checkedBefore time.Time, limit int) ([]string, error) {
	return r.needVerification, nil
}

func (r *stubOpportunityRepo) ListNeedingScoring(ctx context.Context, scoredBefore time.Time, limit int) ([]string, error) {
	return r.needScoring, nil
}

func (r *stubOpportunityRepo) PrescriberHistory(ctx context.Context, prescriberNPI string) (*entities.PrescriberHistory, error) {
	return r.prescriber, nil
}

func (r *stubOpportunityRepo) CountOpen(ctx context.Context) (int, error) {
	return r.openCount, nil
}

type stubPrescriptionRepo struct {
	latest    *entities.Prescription
	latestErr error
	fills     *entities.PatientFillHistory
}

func (r *stubPrescriptionRepo) LatestForPatient(ctx context.Context, patientID string) (*entities.Prescription, error) {
	if r.latestErr != nil {
		return nil, r.latestErr
	}
	if r.latest == nil {
		return nil, errNotFound(patientID)
	}
	return r.latest, nil
}

func (r *stubPrescriptionRepo) FillHistory(ctx context.Context, patientID string, recentWindow time.Duration) (*entities.PatientFillHistory, error) {
	if r.fills != nil {
		return r.fills, nil
	}
	return &entities.PatientFillHistory{PatientID: patientID}, nil
}

type stubVerificationLog struct {
	mu      sync.Mutex
	entries []*entities.VerificationLogEntry
	err     error
}

func (r *stubVerificationLog) Append(ctx context.Context, entry *entities.VerificationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubVerificationLog) ListForOpportunity(ctx context.Context, opportunityID string, limit int) ([]*entities.VerificationLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, nil
}

type stubWorkabilityRepo struct {
	mu           sync.Mutex
	scores       map[string]*entities.WorkabilityScore
	upsertErr    error
	grades       map[string]int
	lowGradeOpen int
}

func newStubWorkabilityRepo() *stubWorkabilityRepo {
	return &stubWorkabilityRepo{scores: make(map[string]*entities.WorkabilityScore)}
}

func (r *stubWorkabilityRepo) Upsert(ctx context.Context, score *entities.WorkabilityScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.scores[score.OpportunityID] = score
	return nil
}

func (r *stubWorkabilityRepo) GetByOpportunityID(ctx context.Context, opportunityID string) (*entities.WorkabilityScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if score, ok := r.scores[opportunityID]; ok {
		return score, nil
	}
	return nil, errNotFound(opportunityID)
}

func (r *stubWorkabilityRepo) GradeDistribution(ctx context.Context) (map[string]int, error) {
	return r.grades, nil
}

func (r *stubWorkabilityRepo) CountLowGradeOpen(ctx context.Context) (int, error) {
	return r.lowGradeOpen, nil
}

type stubDashboardRepo struct {
	total     int
	successes int
	countsErr error
	sources   []entities.VerificationSourceStats
	failures  []entities.FailureReasonCount
}

func (r *stubDashboardRepo) VerificationCounts(ctx context.Context, since time.Time) (int, int, error) {
	return r.total, r.successes, r.countsErr
}

func (r *stubDashboardRepo) SourceBreakdown(ctx context.Context, since time.Time) ([]entities.VerificationSourceStats, error) {
	return r.sources, nil
}

func (r *stubDashboardRepo) TopFailureReasons(ctx context.Context, since time.Time, limit int) ([]entities.FailureReasonCount, error) {
	return r.failures, nil
}

// stubSource is a scripted coverage source for resolver and diagnostic tests
type stubSource struct {
	mu     sync.Mutex
	name   entities.CoverageSource
	record *entities.CoverageRecord
	err    error
	calls  int
}

func (s *stubSource) Name() entities.CoverageSource { return s.name }

func (s *stubSource) Lookup(ctx context.Context, ndc string, ins entities.InsuranceContext) (*entities.CoverageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.record, s.err
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type notFoundError string

func (e notFoundError) Error() string { return "not found: " + string(e) }

func errNotFound(id string) error { return notFoundError(id) }

func boolPtr(b bool) *bool           { return &b }
func intPtr(i int) *int              { return &i }
func floatPtr(f float64) *float64    { return &f }
func timePtr(t time.Time) *time.Time { return &t }
