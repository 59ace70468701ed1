/**
 * @description
 * This package provides a client for the external payout rail's provider API.
 * It encapsulates the logic for making authenticated HTTP requests, handling
 * request body construction, and parsing responses. Every submission carries a
 * caller-generated idempotency key, so a transport-level retry can never cause
 * the rail to execute a transfer twice.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package railclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ErrOperationNotFound is returned by the status queries when the rail has no
// record of the operation.
var ErrOperationNotFound = errors.New("operation not found at rail")

// Rail-side operation statuses as reported by status queries.
const (
	OperationProcessing = "processing"
	OperationSucceeded  = "succeeded"
	OperationFailed     = "failed"
)

// Client is a client for the payout rail API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new rail API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Destination carries the method-specific routing fields for a submission.
// Fields are populated per method type; the rail ignores the rest.
type Destination struct {
	AccountName   string `json:"accountName,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	RoutingNumber string `json:"routingNumber,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	SwiftCode     string `json:"swiftCode,omitempty"`
	WalletHandle  string `json:"walletHandle,omitempty"`
	CardToken     string `json:"cardToken,omitempty"`
	RecipientName string `json:"recipientName,omitempty"`
	City          string `json:"city,omitempty"`
	Country       string `json:"country,omitempty"`
	CryptoAddress string `json:"cryptoAddress,omitempty"`
	CryptoNetwork string `json:"cryptoNetwork,omitempty"`
}

// SubmitPayoutParams is the payload for a payout submission.
type SubmitPayoutParams struct {
	IdempotencyKey string      `json:"idempotencyKey"`
	MethodType     string      `json:"methodType"`
	Amount         int64       `json:"amount"`
	Currency       string      `json:"currency"`
	Reference      string      `json:"reference,omitempty"`
	Destination    Destination `json:"destination"`
}

// PayoutResponse is the rail's acknowledgment of an accepted submission.
type PayoutResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

// PayoutStatusResponse is the rail's answer to a status query.
type PayoutStatusResponse struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Reason string `json:"reason,omitempty"`
	} `json:"data"`
}

// ErrorResponse represents an error from the rail API.
type ErrorResponse struct {
	StatusCode int `json:"-"`
	Errors     []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("rail api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return fmt.Sprintf("rail api error: status %d", e.StatusCode)
}

// IsExplicitRejection reports whether the rail definitively refused the
// request. Throttling and request timeouts are not rejections; they leave the
// outcome ambiguous and must go through reconciliation instead.
func (e *ErrorResponse) IsExplicitRejection() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout {
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Reason returns the human-readable rejection detail, if any.
func (e *ErrorResponse) Reason() string {
	if len(e.Errors) > 0 {
		if e.Errors[0].Detail != "" {
			return e.Errors[0].Detail
		}
		return e.Errors[0].Title
	}
	return "rejected by rail"
}

// SubmitPayout submits a payout for execution. The idempotency key is also
// sent as a header so the rail can dedupe retried requests at the edge.
func (c *Client) SubmitPayout(ctx context.Context, params SubmitPayoutParams) (*PayoutResponse, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v1/payouts", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create payout request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rail-key", c.APIKey)
	req.Header.Set("Idempotency-Key", params.IdempotencyKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute payout request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payout response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError("submit_payout", resp.StatusCode, bodyBytes)
	}

	var successResp PayoutResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return nil, fmt.Errorf("failed to decode payout response: %w", err)
	}

	return &successResp, nil
}

// GetPayoutStatus queries the current status of an operation by its rail id.
func (c *Client) GetPayoutStatus(ctx context.Context, operationID string) (*PayoutStatusResponse, error) {
	return c.queryStatus(ctx, c.BaseURL+"/api/v1/payouts/"+url.PathEscape(operationID))
}

// GetPayoutStatusByReference queries an operation by the idempotency key it
// was submitted with. Used when the rail never acknowledged the submission and
// no operation id is known.
func (c *Client) GetPayoutStatusByReference(ctx context.Context, idempotencyKey string) (*PayoutStatusResponse, error) {
	return c.queryStatus(ctx, c.BaseURL+"/api/v1/payouts/by-reference/"+url.PathEscape(idempotencyKey))
}

func (c *Client) queryStatus(ctx context.Context, endpoint string) (*PayoutStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rail-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute status request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrOperationNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.decodeError("get_status", resp.StatusCode, bodyBytes)
	}

	var statusResp PayoutStatusResponse
	if err := json.Unmarshal(bodyBytes, &statusResp); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &statusResp, nil
}

func (c *Client) decodeError(op string, statusCode int, body []byte) error {
	errResp := &ErrorResponse{StatusCode: statusCode}
	if err := json.Unmarshal(body, errResp); err != nil {
		log.Printf("level=warn component=rail_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, statusCode)
		return fmt.Errorf("rail request failed (status %d)", statusCode)
	}
	log.Printf("level=warn component=rail_client op=%s status=%d detail=%q", op, statusCode, errResp.Reason())
	return errResp
}
