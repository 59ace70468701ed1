/**
 * @description
 * This file defines the `Repository` interface: the contract for all data
 * access the payout-service needs. The interface decouples the lifecycle and
 * dispatch logic from PostgreSQL, which also lets the application-layer tests
 * run against hand-written stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/domain"
)

// AmbiguousPayout pairs a processing payout request with its unresolved ledger
// attempt, as selected by the reconciliation sweep.
type AmbiguousPayout struct {
	Request domain.PayoutRequest
	Attempt domain.PayoutAttempt
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Payout method registry
	CreatePayoutMethod(ctx context.Context, method *domain.PayoutMethod) error
	FindPayoutMethodByID(ctx context.Context, methodID uuid.UUID, userID uuid.UUID) (*domain.PayoutMethod, error)
	ListPayoutMethods(ctx context.Context, userID uuid.UUID) ([]domain.PayoutMethod, error)
	SetDefaultPayoutMethod(ctx context.Context, userID uuid.UUID, methodID uuid.UUID) error
	SoftDeletePayoutMethod(ctx context.Context, methodID uuid.UUID, userID uuid.UUID) error

	// Payout request lifecycle. CreatePayoutRequest validates the referenced
	// method (owned, not soft-deleted) inside the same transaction as the
	// insert, so a concurrent method deletion cannot race the fee freeze.
	CreatePayoutRequest(ctx context.Context, req *domain.PayoutRequest) error
	FindPayoutRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, userID uuid.UUID, opts domain.PayoutListOptions) ([]domain.PayoutRequest, error)

	// CancelPayoutRequest cancels a pending request that has no dispatch
	// attempt recorded. Returns ErrAlreadyDispatched when a ledger record
	// exists, ErrPayoutConflict when the request is past pending.
	CancelPayoutRequest(ctx context.Context, requestID uuid.UUID, userID uuid.UUID) error

	// Idempotency ledger + dispatch coordination.
	//
	// BeginDispatch atomically moves a pending request to processing and
	// inserts the ledger attempt. It returns false (and no error) when
	// another attempt already exists for the request, in which case the
	// dispatcher must consult the existing record instead of re-submitting.
	BeginDispatch(ctx context.Context, attempt *domain.PayoutAttempt) (bool, error)
	FindLatestPayoutAttempt(ctx context.Context, requestID uuid.UUID) (*domain.PayoutAttempt, error)
	FindPayoutAttemptByOperationID(ctx context.Context, operationID string) (*domain.PayoutAttempt, error)
	RecordRailAcceptance(ctx context.Context, attemptID uuid.UUID, operationID string) error

	// ResolvePayout applies a terminal rail outcome to the request and marks
	// the ledger attempt resolved in one transaction. The request update is
	// conditioned on the current processing status; it returns false when the
	// request was already resolved by a concurrent path.
	ResolvePayout(ctx context.Context, requestID uuid.UUID, attemptID uuid.UUID, outcome string, failureReason string) (bool, error)

	// Reconciliation support.
	ListAmbiguousPayouts(ctx context.Context, inFlightSince time.Time, limit int) ([]AmbiguousPayout, error)
	TouchPayoutAttempt(ctx context.Context, attemptID uuid.UUID) error
	EscalatePayoutToReview(ctx context.Context, requestID uuid.UUID, reason string) (bool, error)

	// Webhook event deduplication. WebhookEventSeen reports whether an event
	// id was already recorded; RecordWebhookEvent durably registers an event
	// that produced no transition (returns true only for the first delivery).
	WebhookEventSeen(ctx context.Context, eventID string) (bool, error)
	RecordWebhookEvent(ctx context.Context, eventID string) (bool, error)

	// ResolvePayoutFromWebhook records the event id and applies the terminal
	// outcome in one transaction, so a failed delivery leaves no dedup record
	// behind and the rail's redelivery can retry the transition. Returns false
	// when the event was already recorded or the request already left
	// processing.
	ResolvePayoutFromWebhook(ctx context.Context, eventID string, requestID uuid.UUID, attemptID uuid.UUID, outcome string, failureReason string) (bool, error)
}
