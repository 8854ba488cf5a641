package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leadpulse/leadpulse-backend/pkg/enums"
	pkgerrors "github.com/leadpulse/leadpulse-backend/pkg/errors"
)

const (
	responseBodyReadLimit int64 = 1024
	defaultTimeout              = 15 * time.Second
)

// Gateway is the payment-provider contract the billing flows depend on.
type Gateway interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentResult, error)
	CheckStatus(ctx context.Context, transactionID string) (enums.PaymentOutcome, error)
}

// CreatePaymentInput describes one charge request.
type CreatePaymentInput struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	ReferenceID string          `json:"reference_id"`
	PayerID     string          `json:"payer_id"`
	PayerEmail  string          `json:"payer_email,omitempty"`
}

// PaymentResult is the gateway's synchronous answer. A declined card is a
// failed result, not an error; errors mean the charge outcome is unknown.
type PaymentResult struct {
	TransactionID string               `json:"transaction_id"`
	Status        enums.PaymentOutcome `json:"status"`
}

// Client talks to the external payment gateway over its REST contract.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds a payment gateway client.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, fmt.Errorf("payment gateway base url is required")
	}
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, fmt.Errorf("payment gateway api key is required")
	}

	client := &Client{
		baseURL:    strings.TrimRight(trimmedURL, "/"),
		apiKey:     trimmedKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreatePayment submits a charge and returns the gateway's verdict.
func (c *Client) CreatePayment(ctx context.Context, input CreatePaymentInput) (*PaymentResult, error) {
	if input.ReferenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference id is required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "marshal payment request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "build payment request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// The reference id doubles as the provider-side idempotency key.
	req.Header.Set("Idempotency-Key", input.ReferenceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "execute payment request")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatusCode(resp, "payment request"); err != nil {
		return nil, err
	}

	var apiResp struct {
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "decode payment response")
	}
	outcome, err := enums.ParsePaymentOutcome(apiResp.Status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "unexpected payment status")
	}

	return &PaymentResult{
		TransactionID: apiResp.TransactionID,
		Status:        outcome,
	}, nil
}

// CheckStatus fetches the current outcome of a previously created payment.
func (c *Client) CheckStatus(ctx context.Context, transactionID string) (enums.PaymentOutcome, error) {
	trimmed := strings.TrimSpace(transactionID)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+trimmed, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "build status request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "execute status request")
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.checkStatusCode(resp, "status request"); err != nil {
		return "", err
	}

	var apiResp struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "decode status response")
	}
	outcome, err := enums.ParsePaymentOutcome(apiResp.Status)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodePaymentGateway, err, "unexpected payment status")
	}
	return outcome, nil
}

func (c *Client) checkStatusCode(resp *http.Response, op string) error {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return pkgerrors.Wrap(pkgerrors.CodePaymentGateway, cause, op+" failed")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, op+" rejected")
}
