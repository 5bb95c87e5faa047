package coverage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

type stubFormularyRepo struct {
	entry         *entities.FormularyEntry
	err           error
	medicareCalls int
	commCalls     int
}

func (r *stubFormularyRepo) FindByMedicareKey(ctx context.Context, ndc, contractID, planID string) (*entities.FormularyEntry, error) {
	r.medicareCalls++
	return r.entry, r.err
}

func (r *stubFormularyRepo) FindByCommercialKey(ctx context.Context, ndc, bin, pcn string) (*entities.FormularyEntry, error) {
	r.commCalls++
	return r.entry, r.err
}

func TestLocalLookup_PrefersMedicareKey(t *testing.T) {
	repo := &stubFormularyRepo{entry: &entities.FormularyEntry{Covered: true, Verified: true}}
	adapter := NewLocalFormularyAdapter(repo)

	record, err := adapter.Lookup(context.Background(), "12345678901", entities.InsuranceContext{
		ContractID: "H1234",
		BIN:        "610011",
	})
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, 1, repo.medicareCalls)
	assert.Equal(t, 0, repo.commCalls)
	assert.Equal(t, entities.ConfidenceHigh, record.Confidence)
	assert.Equal(t, entities.SourceLocalCache, record.Source)
}

func TestLocalLookup_FallsBackToCommercialKey(t *testing.T) {
	repo := &stubFormularyRepo{entry: &entities.FormularyEntry{Covered: true}}
	adapter := NewLocalFormularyAdapter(repo)

	record, err := adapter.Lookup(context.Background(), "12345678901", entities.InsuranceContext{BIN: "610011", PCN: "IRX"})
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, 0, repo.medicareCalls)
	assert.Equal(t, 1, repo.commCalls)
	// Unverified row is only medium confidence
	assert.Equal(t, entities.ConfidenceMedium, record.Confidence)
}

func TestLocalLookup_NoUsableKeyIsNoData(t *testing.T) {
	repo := &stubFormularyRepo{}
	adapter := NewLocalFormularyAdapter(repo)

	record, err := adapter.Lookup(context.Background(), "12345678901", entities.InsuranceContext{GroupNumber: "G1"})
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, 0, repo.medicareCalls+repo.commCalls)
}

func TestLocalLookup_NotFoundIsNoData(t *testing.T) {
	repo := &stubFormularyRepo{err: apperrors.NewNotFoundError("formulary entry not found")}
	adapter := NewLocalFormularyAdapter(repo)

	record, err := adapter.Lookup(context.Background(), "12345678901", medicareContext())
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLocalLookup_QueryErrorPropagates(t *testing.T) {
	repo := &stubFormularyRepo{err: apperrors.NewInternalError("query failed", errors.New("bad connection"))}
	adapter := NewLocalFormularyAdapter(repo)

	record, err := adapter.Lookup(context.Background(), "12345678901", medicareContext())
	assert.Nil(t, record)
	assert.Error(t, err)
}

func TestLocalLookup_NotCoveredRowIsStillAnAnswer(t *testing.T) {
	repo := &stubFormularyRepo{entry: &entities.FormularyEntry{Covered: false, Verified: true}}
	adapter := NewLocalFormularyAdapter(repo)

	record, err := adapter.Lookup(context.Background(), "12345678901", medicareContext())
	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotNil(t, record.Covered)
	assert.False(t, *record.Covered)
}
