package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/stackbill/stackbill/internal/config"
	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
)

const (
	requestTimeout = 10 * time.Second
	maxRetryTime   = 30 * time.Second
)

// HTTPProvider fetches exchange rates from a frankfurter-compatible
// endpoint: GET {url}?base={code} returning {"base": ..., "rates": {...}}.
type HTTPProvider struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

func NewHTTPProvider(cfg *config.Configuration, logger *logger.Logger) *HTTPProvider {
	return &HTTPProvider{
		url:    cfg.Currency.ProviderURL,
		client: &http.Client{Timeout: requestTimeout},
		logger: logger,
	}
}

type ratesResponse struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// FetchRates retrieves rates against the base currency, retrying
// transient failures with exponential backoff. Client errors (4xx) are
// permanent and fail immediately.
func (p *HTTPProvider) FetchRates(ctx context.Context, baseCurrency string) (map[string]decimal.Decimal, error) {
	if p.url == "" {
		return nil, ierr.NewError("exchange rate provider is not configured").
			WithHint("Set the currency provider URL to enable conversions").
			Mark(ierr.ErrConfiguration)
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxRetryTime),
	), ctx)

	var result *ratesResponse
	operation := func() error {
		var err error
		result, err = p.fetch(ctx, baseCurrency)
		return err
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	p.logger.Debugw("fetched exchange rates",
		"base", baseCurrency,
		"count", len(result.Rates),
	)
	return result.Rates, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, baseCurrency string) (*ratesResponse, error) {
	url := fmt.Sprintf("%s?base=%s", p.url, baseCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(ierr.WithError(err).
			WithHint("Invalid rate provider URL").
			Mark(ierr.ErrConfiguration))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Rate provider request failed").
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read rate provider response").
			Mark(ierr.ErrHTTPClient)
	}

	if resp.StatusCode >= 400 {
		wrapped := ierr.NewError("rate provider returned an error").
			WithHintf("Rate provider responded with status %d", resp.StatusCode).
			WithReportableDetails(map[string]any{
				"status": resp.StatusCode,
			}).
			Mark(ierr.ErrHTTPClient)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(wrapped)
		}
		return nil, wrapped
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backoff.Permanent(ierr.WithError(err).
			WithHint("Rate provider returned a malformed response").
			Mark(ierr.ErrHTTPClient))
	}
	if len(parsed.Rates) == 0 {
		return nil, backoff.Permanent(ierr.NewError("rate provider returned no rates").
			WithHintf("No rates available for base currency %s", baseCurrency).
			Mark(ierr.ErrHTTPClient))
	}
	return &parsed, nil
}
