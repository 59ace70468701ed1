package domain

import (
	"time"

	"github.com/google/uuid"
)

// Webhook outcomes reported by the rail.
const (
	WebhookOutcomeSucceeded = "succeeded"
	WebhookOutcomeFailed    = "failed"
	WebhookOutcomeReversed  = "reversed"
)

// RailWebhookEvent is the normalized form of an asynchronous callback from the
// payment rail. EventID is rail-assigned and unique per delivery attempt
// series; replays carry the same EventID.
type RailWebhookEvent struct {
	EventID     string    `json:"event_id"`
	OperationID string    `json:"operation_id"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PayoutSettledEvent is published to the message broker after a payout reaches
// a terminal state. Delivery is best-effort and never blocks the transition.
type PayoutSettledEvent struct {
	PayoutRequestID uuid.UUID `json:"payout_request_id"`
	UserID          uuid.UUID `json:"user_id"`
	Status          string    `json:"status"`
	Amount          int64     `json:"amount"`
	Fee             int64     `json:"fee"`
	NetAmount       int64     `json:"net_amount"`
	Currency        string    `json:"currency"`
	FailureReason   *string   `json:"failure_reason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}
