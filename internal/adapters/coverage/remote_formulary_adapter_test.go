package coverage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/formularyapi"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
)

type stubFormularyClient struct {
	calls    int
	requests []formularyapi.SearchRequest
	resp     *formularyapi.SearchResponse
	err      error
}

func (c *stubFormularyClient) SearchFormulary(ctx context.Context, req formularyapi.SearchRequest) (*formularyapi.SearchResponse, error) {
	c.calls++
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func medicareContext() entities.InsuranceContext {
	return entities.InsuranceContext{ContractID: "H1234", PlanID: "001"}
}

func TestNormalizeNDC(t *testing.T) {
	assert.Equal(t, "00071015523", NormalizeNDC("0071-0155-23"))
	assert.Equal(t, "00000123456", NormalizeNDC("123456"))
	assert.Equal(t, "12345678901", NormalizeNDC("12345678901"))
	assert.Equal(t, "", NormalizeNDC("no-digits"))
}

func TestRemoteLookup_SkipsNonMedicareContract(t *testing.T) {
	client := &stubFormularyClient{}
	adapter := NewRemoteFormularyAdapter(client, 3, time.Millisecond)

	// Commercial BIN/PCN only
	record, err := adapter.Lookup(context.Background(), "0071-0155-23", entities.InsuranceContext{BIN: "610011", PCN: "IRX"})
	require.NoError(t, err)
	assert.Nil(t, record)

	// Contract present but not Medicare-shaped
	record, err = adapter.Lookup(context.Background(), "0071-0155-23", entities.InsuranceContext{ContractID: "COMM-99"})
	require.NoError(t, err)
	assert.Nil(t, record)

	assert.Equal(t, 0, client.calls)
}

func TestRemoteLookup_SendsNormalizedNDC(t *testing.T) {
	client := &stubFormularyClient{resp: &formularyapi.SearchResponse{}}
	adapter := NewRemoteFormularyAdapter(client, 3, time.Millisecond)

	_, err := adapter.Lookup(context.Background(), "0071-0155-23", medicareContext())
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	assert.Equal(t, "00071015523", client.requests[0].NDC)
	assert.Equal(t, "H1234", client.requests[0].ContractID)
}

func TestRemoteLookup_ZeroRowsIsNoData(t *testing.T) {
	client := &stubFormularyClient{resp: &formularyapi.SearchResponse{}}
	adapter := NewRemoteFormularyAdapter(client, 3, time.Millisecond)

	record, err := adapter.Lookup(context.Background(), "12345678901", medicareContext())
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, 1, client.calls)
}

func TestRemoteLookup_MapsFormularyRow(t *testing.T) {
	tier := 2
	copay := 12.50
	client := &stubFormularyClient{resp: &formularyapi.SearchResponse{
		Data: []formularyapi.FormularyRow{{
			NDC:               "12345678901",
			TierLevel:         &tier,
			TierDescription:   "Preferred Brand",
			PriorAuthRequired: true,
			EstimatedCopay:    &copay,
		}},
	}}
	adapter := NewRemoteFormularyAdapter(client, 3, time.Millisecond)

	record, err := adapter.Lookup(context.Background(), "12345678901", medicareContext())
	require.NoError(t, err)
	require.NotNil(t, record)

	require.NotNil(t, record.Covered)
	assert.True(t, *record.Covered)
	assert.Equal(t, 2, *record.Tier)
	assert.True(t, record.PriorAuthRequired)
	assert.Equal(t, entities.ConfidenceHigh, record.Confidence)
	assert.Equal(t, entities.SourceRemoteAPI, record.Source)
}

func TestRemoteLookup_RetriesThenFails(t *testing.T) {
	client := &stubFormularyClient{err: errors.New("connection refused")}
	adapter := NewRemoteFormularyAdapter(client, 3, time.Millisecond)

	record, err := adapter.Lookup(context.Background(), "12345678901", medicareContext())
	assert.Nil(t, record)
	require.Error(t, err)
	assert.Equal(t, 3, client.calls)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeUnavailable, appErr.Type)
}

func TestRemoteLookup_RecoversWithinRetryBudget(t *testing.T) {
	// Fail twice, then succeed
	flaky := &flakyClient{fail: 2, resp: &formularyapi.SearchResponse{Data: []formularyapi.FormularyRow{{NDC: "12345678901"}}}}
	adapter := NewRemoteFormularyAdapter(flaky, 3, time.Millisecond)

	record, err := adapter.Lookup(context.Background(), "12345678901", medicareContext())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 3, flaky.calls)
}

type flakyClient struct {
	calls int
	fail  int
	resp  *formularyapi.SearchResponse
}

func (c *flakyClient) SearchFormulary(ctx context.Context, req formularyapi.SearchRequest) (*formularyapi.SearchResponse, error) {
	c.calls++
	if c.calls <= c.fail {
		return nil, errors.New("transient")
	}
	return c.resp, nil
}
