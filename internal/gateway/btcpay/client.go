package btcpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	ierr "github.com/stackbill/stackbill/internal/errors"
	"github.com/stackbill/stackbill/internal/logger"
)

// client is a minimal BTCPay Greenfield API client scoped to a single store.
type client struct {
	baseURL string
	storeID string
	apiKey  string
	http    *retryablehttp.Client
	logger  *logger.Logger
}

func newClient(serverURL, storeID, apiKey string, logger *logger.Logger) *client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	return &client{
		baseURL: strings.TrimRight(serverURL, "/"),
		storeID: storeID,
		apiKey:  apiKey,
		http:    rc,
		logger:  logger,
	}
}

// do issues an authenticated request and decodes the JSON response into out
// when out is non-nil.
func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to encode gateway request").
				Mark(ierr.ErrGateway)
		}
		reader = bytes.NewReader(encoded)
	}

	url := fmt.Sprintf("%s/api/v1%s", c.baseURL, path)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to build gateway request").
			Mark(ierr.ErrGateway)
	}
	req.Header.Set("Authorization", "token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Payment gateway is unreachable").
			Mark(ierr.ErrGateway)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read gateway response").
			Mark(ierr.ErrGateway)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Errorw("btcpay api error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(payload),
		)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ierr.NewError("gateway authentication failed").
				WithHint("Payment gateway is misconfigured").
				Mark(ierr.ErrConfiguration)
		case http.StatusNotFound:
			return ierr.NewError("gateway resource not found").
				WithHint("The requested gateway resource does not exist").
				Mark(ierr.ErrNotFound)
		case http.StatusTooManyRequests:
			return ierr.NewError("rate limited by gateway").
				WithHint("Too many requests, retry later").
				Mark(ierr.ErrRateLimited)
		}
		return ierr.NewError("gateway request failed").
			WithHintf("Gateway returned status %d", resp.StatusCode).
			Mark(ierr.ErrGateway)
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to decode gateway response").
				Mark(ierr.ErrGateway)
		}
	}
	return nil
}

// invoiceResponse is the Greenfield invoice shape, reduced to the fields
// this integration reads.
type invoiceResponse struct {
	ID               string         `json:"id"`
	StoreID          string         `json:"storeId"`
	Amount           string         `json:"amount"`
	Currency         string         `json:"currency"`
	Status           string         `json:"status"`
	CheckoutLink     string         `json:"checkoutLink"`
	CreatedTime      int64          `json:"createdTime"`
	ExpirationTime   int64          `json:"expirationTime"`
	Metadata         map[string]any `json:"metadata"`
	AdditionalStatus string         `json:"additionalStatus"`
}

type createInvoiceRequest struct {
	Amount   string         `json:"amount"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Checkout *checkoutOpts  `json:"checkout,omitempty"`
}

type checkoutOpts struct {
	RedirectURL           string `json:"redirectURL,omitempty"`
	RedirectAutomatically bool   `json:"redirectAutomatically,omitempty"`
}

func (c *client) createInvoice(ctx context.Context, req createInvoiceRequest) (*invoiceResponse, error) {
	var resp invoiceResponse
	path := fmt.Sprintf("/stores/%s/invoices", c.storeID)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) getInvoice(ctx context.Context, invoiceID string) (*invoiceResponse, error) {
	var resp invoiceResponse
	path := fmt.Sprintf("/stores/%s/invoices/%s", c.storeID, invoiceID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) markInvoiceInvalid(ctx context.Context, invoiceID string) error {
	path := fmt.Sprintf("/stores/%s/invoices/%s/status", c.storeID, invoiceID)
	return c.do(ctx, http.MethodPost, path, map[string]string{"status": "Invalid"}, nil)
}

type refundResponse struct {
	ID       string `json:"id"`
	ViewLink string `json:"viewLink"`
}

func (c *client) refundInvoice(ctx context.Context, invoiceID string) (*refundResponse, error) {
	var resp refundResponse
	path := fmt.Sprintf("/stores/%s/invoices/%s/refund", c.storeID, invoiceID)
	body := map[string]any{"refundVariant": "CurrentRate"}
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
