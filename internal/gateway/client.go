// internal/gateway/client.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"rideflow-wallet/internal/util"
)

// InitiateRequest carries everything the aggregator needs to start collecting
// a payment from the customer's mobile-money account.
type InitiateRequest struct {
	Reference     string // our merchant reference for callback matching
	Amount        int64  // total charge including fees
	Currency      string
	PaymentMethod string // e.g. "ORANGE_MONEY", "MTN_MOMO"
	CustomerPhone string
	Reason        string
}

// InitiateResponse is the normalized result of a payment initiation.
type InitiateResponse struct {
	ExternalID string // gateway-assigned payment reference
}

// StatusResponse is the normalized result of a status poll.
type StatusResponse struct {
	ExternalID string         `json:"external_id"`
	Status     string         `json:"status"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// Client is the contract the wallet engine requires from the external
// payment aggregator.
type Client interface {
	// InitiatePayment dispatches a collection request and returns the
	// gateway's reference for it.
	InitiatePayment(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error)
	// PaymentStatus polls the gateway for the current state of a payment.
	PaymentStatus(ctx context.Context, externalID string) (*StatusResponse, error)
}

// Config holds gateway connection settings, all environment-supplied.
type Config struct {
	BaseURL       string
	APIKey        string
	MerchantPhone string
	CallbackURL   string
	Provider      string // free-form provider label stored on transactions
	Timeout       time.Duration
}

// HTTPClient implements Client against the aggregator's REST API.
type HTTPClient struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewHTTPClient creates an HTTPClient. The configured timeout bounds every
// gateway call; on timeout the caller's PENDING transaction is left for
// webhook or poll reconciliation.
func NewHTTPClient(cfg Config, logger *slog.Logger) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type initiatePayload struct {
	MerchantRef   string `json:"app_transaction_ref"`
	Amount        int64  `json:"transaction_amount"`
	Currency      string `json:"transaction_currency"`
	Method        string `json:"payment_method"`
	CustomerPhone string `json:"customer_phone_number"`
	MerchantPhone string `json:"merchant_phone_number"`
	Reason        string `json:"transaction_reason,omitempty"`
	CallbackURL   string `json:"callback_url"`
}

// initiateResult tolerates the reference field names used across provider API
// versions.
type initiateResult struct {
	PaymentID            string `json:"payment_id"`
	TransactionID        string `json:"transaction_id"`
	CoolpayTransactionID string `json:"coolpay_transaction_id"`
}

func (r *initiateResult) externalID() string {
	switch {
	case r.PaymentID != "":
		return r.PaymentID
	case r.TransactionID != "":
		return r.TransactionID
	default:
		return r.CoolpayTransactionID
	}
}

// InitiatePayment POSTs a collection request to the aggregator.
func (c *HTTPClient) InitiatePayment(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error) {
	payload := initiatePayload{
		MerchantRef:   req.Reference,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Method:        req.PaymentMethod,
		CustomerPhone: req.CustomerPhone,
		MerchantPhone: c.cfg.MerchantPhone,
		Reason:        req.Reason,
		CallbackURL:   c.cfg.CallbackURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to marshal initiate payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payin", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to build initiate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: initiate call failed: %v", util.ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read initiate response: %v", util.ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Gateway rejected payment initiation",
			"status_code", resp.StatusCode, "merchant_ref", req.Reference, "body", string(raw))
		return nil, fmt.Errorf("%w: initiate returned status %d", util.ErrGateway, resp.StatusCode)
	}

	var result initiateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode initiate response: %v", util.ErrGateway, err)
	}
	externalID := result.externalID()
	if externalID == "" {
		return nil, fmt.Errorf("%w: initiate response carries no payment reference", util.ErrGateway)
	}

	return &InitiateResponse{ExternalID: externalID}, nil
}

// PaymentStatus GETs the current state of a payment from the aggregator.
func (c *HTTPClient) PaymentStatus(ctx context.Context, externalID string) (*StatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/payin/status/"+externalID, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: status call failed: %v", util.ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read status response: %v", util.ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status returned status %d", util.ErrGateway, resp.StatusCode)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: failed to decode status response: %v", util.ErrGateway, err)
	}

	return &StatusResponse{
		ExternalID: externalID,
		Status:     stringField(fields, "transaction_status", "payment_status", "status"),
		Raw:        fields,
	}, nil
}

// Provider returns the configured provider label.
func (c *HTTPClient) Provider() string {
	return c.cfg.Provider
}
