package formularyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Client is the remote formulary API contract. The API accepts contract id,
// plan id and a normalized NDC as filter parameters and returns zero or more
// formulary rows.
type Client interface {
	SearchFormulary(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest holds the formulary search filter parameters
type SearchRequest struct {
	ContractID string
	PlanID     string
	NDC        string
}

// SearchResponse is the formulary API response envelope
type SearchResponse struct {
	Data      []FormularyRow `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  *Metadata      `json:"metadata"`
}

// Metadata describes the result set
type Metadata struct {
	Count   int    `json:"count"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

// FormularyRow is one formulary entry as returned by the remote API
type FormularyRow struct {
	NDC                 string   `json:"ndc"`
	ContractID          string   `json:"contractId"`
	PlanID              string   `json:"planId"`
	TierLevel           *int     `json:"tierLevel"`
	TierDescription     string   `json:"tierDescription"`
	PriorAuthRequired   bool     `json:"priorAuthorizationRequired"`
	StepTherapyRequired bool     `json:"stepTherapyRequired"`
	QuantityLimit       *int     `json:"quantityLimit"`
	EstimatedCopay      *float64 `json:"estimatedCopay"`
	DrugName            string   `json:"drugName,omitempty"`
}

// HTTPClient implements Client over HTTPS with a hard per-request timeout and
// a circuit breaker in front of the transport
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new formulary API client
func NewClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	trimmed := strings.TrimRight(baseURL, "/")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "formulary-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HTTPClient{
		baseURL: trimmed,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: breaker,
	}
}

// SearchFormulary queries the formulary endpoint. A non-2xx status or a
// transport failure is an error; a 2xx response that is empty or malformed
// decodes as zero rows, which callers treat as no data.
func (c *HTTPClient) SearchFormulary(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	parsed, err := url.Parse(fmt.Sprintf("%s/formulary", c.baseURL))
	if err != nil {
		return nil, err
	}

	query := parsed.Query()
	if req.ContractID != "" {
		query.Set("contractId", req.ContractID)
	}
	if req.PlanID != "" {
		query.Set("planId", req.PlanID)
	}
	if req.NDC != "" {
		query.Set("ndc", req.NDC)
	}
	parsed.RawQuery = query.Encode()

	out := &SearchResponse{}
	if err := c.doJSON(ctx, http.MethodGet, parsed.String(), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, endpoint string, out *SearchResponse) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, err
		}
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("formulary api returned status %d", resp.StatusCode)
		}

		// An unparseable success body means the API had nothing for us,
		// not that the call failed.
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			*out = SearchResponse{}
		}
		return nil, nil
	})
	return err
}
