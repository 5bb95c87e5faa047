package coverage

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pillarrx/rxworkability/internal/domain/entities"
	"github.com/pillarrx/rxworkability/internal/domain/providers"
	"github.com/pillarrx/rxworkability/internal/infrastructure/clients/formularyapi"
	"github.com/pillarrx/rxworkability/internal/infrastructure/observability"
	apperrors "github.com/pillarrx/rxworkability/pkg/errors"
	"github.com/pillarrx/rxworkability/pkg/retry"
	"github.com/rs/zerolog"
)

// medicareContractPattern matches Medicare-style contract ids: a letter
// prefix followed by exactly four digits (e.g. H1234, S5601)
var medicareContractPattern = regexp.MustCompile(`^[A-Za-z]\d{4}$`)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeNDC strips separators and zero-pads the NDC to the 11-digit form
// the remote API expects
func NormalizeNDC(ndc string) string {
	digits := nonDigits.ReplaceAllString(ndc, "")
	if digits == "" {
		return ""
	}
	if len(digits) >= 11 {
		return digits[len(digits)-11:]
	}
	return strings.Repeat("0", 11-len(digits)) + digits
}

// RemoteFormularyAdapter resolves coverage against the remote formulary API.
// It applies only to Medicare-style contracts; for anything else it reports
// no data so the resolver moves on.
type RemoteFormularyAdapter struct {
	client   formularyapi.Client
	retryCfg retry.Config
	logger   zerolog.Logger
}

// NewRemoteFormularyAdapter creates a new remote formulary adapter.
// maxAttempts failed calls with a linearly growing backoff propagate as an
// error, so the resolver can tell "tried and failed" from "didn't apply".
func NewRemoteFormularyAdapter(client formularyapi.Client, maxAttempts int, backoff time.Duration) *RemoteFormularyAdapter {
	return &RemoteFormularyAdapter{
		client: client,
		retryCfg: retry.Config{
			MaxAttempts:  maxAttempts,
			InitialDelay: backoff,
			Policy:       retry.PolicyLinear,
		},
		logger: observability.ComponentLogger("remote_formulary_adapter"),
	}
}

// Name identifies the source
func (a *RemoteFormularyAdapter) Name() entities.CoverageSource {
	return entities.SourceRemoteAPI
}

// Lookup queries the remote formulary. Zero matching rows is no data, not an
// error; a transport or non-2xx failure on the final attempt is an error.
func (a *RemoteFormularyAdapter) Lookup(ctx context.Context, ndc string, ins entities.InsuranceContext) (*entities.CoverageRecord, error) {
	if !ins.HasMedicareKey() || !medicareContractPattern.MatchString(ins.ContractID) {
		return nil, nil
	}

	normalized := NormalizeNDC(ndc)
	if normalized == "" {
		return nil, nil
	}

	var resp *formularyapi.SearchResponse
	err := retry.DoWithLog(ctx, a.retryCfg, "formulary-api",
		func() error {
			var callErr error
			resp, callErr = a.client.SearchFormulary(ctx, formularyapi.SearchRequest{
				ContractID: ins.ContractID,
				PlanID:     ins.PlanID,
				NDC:        normalized,
			})
			return callErr
		},
		func(attempt int, err error, nextDelay time.Duration) {
			a.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("next_delay", nextDelay).
				Str("contract_id", ins.ContractID).
				Msg("formulary api call failed, retrying")
		},
	)
	if err != nil {
		return nil, apperrors.NewUnavailableError("remote formulary lookup failed", err)
	}

	if resp == nil || len(resp.Data) == 0 {
		return nil, nil
	}

	return recordFromRow(resp.Data[0]), nil
}

func recordFromRow(row formularyapi.FormularyRow) *entities.CoverageRecord {
	covered := true
	return &entities.CoverageRecord{
		Covered:             &covered,
		Tier:                row.TierLevel,
		TierDescription:     row.TierDescription,
		PriorAuthRequired:   row.PriorAuthRequired,
		StepTherapyRequired: row.StepTherapyRequired,
		QuantityLimit:       row.QuantityLimit,
		EstimatedCopay:      row.EstimatedCopay,
		Confidence:          entities.ConfidenceHigh,
		Source:              entities.SourceRemoteAPI,
	}
}

var _ providers.CoverageSource = (*RemoteFormularyAdapter)(nil)
