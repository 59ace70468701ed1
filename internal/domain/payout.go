/**
 * @description
 * This file defines the core domain models for the payout-service: withdrawal
 * destinations (payout methods), payout requests, and the idempotency ledger
 * records that tie a request to operations on the external payment rail.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (minor units),
 *   which avoids floating-point inaccuracies with financial data.
 * - Method-specific destination fields live in per-type detail structs rather
 *   than one wide struct of nullables, so the dispatcher and fee resolver can
 *   switch exhaustively over the closed method-type enumeration.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// MethodType is the closed enumeration of supported payout destinations.
type MethodType string

const (
	MethodBankDomestic      MethodType = "bank_domestic"
	MethodBankInternational MethodType = "bank_international"
	MethodWallet            MethodType = "wallet"
	MethodCardExpress       MethodType = "card_express"
	MethodCardStandard      MethodType = "card_standard"
	MethodCashPickupA       MethodType = "cash_pickup_a"
	MethodCashPickupB       MethodType = "cash_pickup_b"
	MethodCrypto            MethodType = "crypto"
)

// MethodTypes lists every supported method type, in a stable order.
var MethodTypes = []MethodType{
	MethodBankDomestic,
	MethodBankInternational,
	MethodWallet,
	MethodCardExpress,
	MethodCardStandard,
	MethodCashPickupA,
	MethodCashPickupB,
	MethodCrypto,
}

// IsValid reports whether t is a member of the closed enumeration.
func (t MethodType) IsValid() bool {
	for _, known := range MethodTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Payout request statuses. `completed`, `failed` and `cancelled` are terminal.
// `needs_review` is terminal-adjacent: the automated reconciler escalates to it
// and never transitions out of it; only an operator can.
const (
	StatusPending     = "pending"
	StatusProcessing  = "processing"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusCancelled   = "cancelled"
	StatusNeedsReview = "needs_review"
)

// IsTerminalStatus reports whether status permits no further automated transition.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusNeedsReview:
		return true
	}
	return false
}

// BankDetails holds destination fields for domestic and international bank transfers.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	RoutingNumber string `json:"routing_number,omitempty"`
	IBAN          string `json:"iban,omitempty"`
	SwiftCode     string `json:"swift_code,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	Country       string `json:"country,omitempty"`
}

// WalletDetails holds destination fields for wallet-provider transfers.
type WalletDetails struct {
	Provider string `json:"provider"`
	Handle   string `json:"handle"`
}

// CardDetails holds destination fields for card payouts (express and standard).
type CardDetails struct {
	CardholderName string `json:"cardholder_name"`
	CardToken      string `json:"card_token"`
}

// CashPickupDetails holds recipient fields for cash-pickup network payouts.
type CashPickupDetails struct {
	RecipientName string `json:"recipient_name"`
	City          string `json:"city"`
	Country       string `json:"country"`
}

// CryptoDetails holds destination fields for crypto-network payouts.
type CryptoDetails struct {
	Address  string `json:"address"`
	Network  string `json:"network"`
	Currency string `json:"currency"`
}

// MethodDetails is the tagged union of per-type destination fields. Exactly one
// member is non-nil, matching the owning method's type.
type MethodDetails struct {
	Bank       *BankDetails       `json:"bank,omitempty"`
	Wallet     *WalletDetails     `json:"wallet,omitempty"`
	Card       *CardDetails       `json:"card,omitempty"`
	CashPickup *CashPickupDetails `json:"cash_pickup,omitempty"`
	Crypto     *CryptoDetails     `json:"crypto,omitempty"`
}

// PayoutMethod is a user's saved withdrawal destination. The method type is
// immutable after creation; a changed destination is a new method.
type PayoutMethod struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Type      MethodType        `json:"type"`
	Label     string            `json:"label"`
	LastFour  *string           `json:"last_four,omitempty"`
	IsDefault bool              `json:"is_default"`
	Details   MethodDetails     `json:"details"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	DeletedAt *time.Time        `json:"-"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// PayoutRequest is the unit of lifecycle tracking for one outbound money
// movement. The fee is frozen at creation from the schedule in effect at that
// instant; `net_amount == amount - fee` holds for the life of the record.
type PayoutRequest struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	MethodID      *uuid.UUID `json:"method_id,omitempty"` // nullable for audit after method deletion
	MethodType    MethodType `json:"method_type"`         // frozen copy, survives method deletion
	MethodLabel   string     `json:"method_label"`        // frozen copy
	Amount        int64      `json:"amount"`              // minor units
	Currency      string     `json:"currency"`
	Fee           int64      `json:"fee"` // frozen at creation, never recomputed
	NetAmount     int64      `json:"net_amount"`
	Status        string     `json:"status"`
	Reference     *string    `json:"reference,omitempty"`
	Note          *string    `json:"note,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	DeliverySpeed *string    `json:"delivery_speed,omitempty"`
	PickupCode    *string    `json:"pickup_code,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PayoutAttempt is one row of the idempotency ledger. It maps
// (payout request id, attempt number) to the rail-side operation and its last
// observed status. At most one attempt per request may be in flight
// (submitted with no terminal rail status) at any time.
type PayoutAttempt struct {
	ID              uuid.UUID  `json:"id"`
	PayoutRequestID uuid.UUID  `json:"payout_request_id"`
	AttemptNo       int        `json:"attempt_no"`
	IdempotencyKey  string     `json:"idempotency_key"`
	RailOperationID *string    `json:"rail_operation_id,omitempty"`
	RailStatus      string     `json:"rail_status"` // submitted | accepted | succeeded | failed
	SubmittedAt     time.Time  `json:"submitted_at"`
	LastCheckedAt   time.Time  `json:"last_checked_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// Rail-side attempt statuses tracked in the ledger.
const (
	AttemptSubmitted = "submitted" // written before the rail call; ambiguous until acked
	AttemptAccepted  = "accepted"  // rail acknowledged with an operation id
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
)

// IsResolved reports whether the attempt has reached a terminal rail status.
func (a *PayoutAttempt) IsResolved() bool {
	return a.RailStatus == AttemptSucceeded || a.RailStatus == AttemptFailed
}

// CreatePayoutMethodPayload is the DTO for registering a withdrawal destination.
type CreatePayoutMethodPayload struct {
	Type      MethodType        `json:"type"`
	Label     string            `json:"label"`
	IsDefault bool              `json:"is_default"`
	Details   MethodDetails     `json:"details"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CreatePayoutRequestPayload is the DTO for initiating a payout.
type CreatePayoutRequestPayload struct {
	MethodID      uuid.UUID `json:"method_id"`
	Amount        int64     `json:"amount"` // minor units
	Currency      string    `json:"currency"`
	Reference     *string   `json:"reference,omitempty"`
	Note          *string   `json:"note,omitempty"`
	DeliverySpeed *string   `json:"delivery_speed,omitempty"`
}

// PayoutListOptions controls pagination for a user's payout history.
type PayoutListOptions struct {
	Limit  int
	Offset int
	Status string
}

// FeeQuote is the response of the fee-estimate endpoint. It is computed by the
// same resolver that freezes fees at creation, so estimate and charge agree.
type FeeQuote struct {
	MethodType MethodType `json:"method_type"`
	Amount     int64      `json:"amount"`
	Fee        int64      `json:"fee"`
	NetAmount  int64      `json:"net_amount"`
	Currency   string     `json:"currency"`
}

// ReconcileResult summarizes one reconciliation sweep.
type ReconcileResult struct {
	Scanned       int `json:"scanned"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	Extended      int `json:"extended"`
	Escalated     int `json:"escalated"`
	SweepFailures int `json:"sweep_failures"`
}
