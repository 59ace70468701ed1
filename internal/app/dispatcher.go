/**
 * @description
 * This file contains the dispatcher, the single code path that hands a pending
 * payout request to the external rail. The idempotency ledger row is written
 * before the rail call, with a fresh idempotency key, so that a crash between
 * the submit and the acknowledgement never produces a second rail operation:
 * any retry consults the ledger first and reuses the recorded attempt.
 *
 * Outcome classification follows the rail's HTTP semantics. A 4xx response
 * (other than 408 and 429) is an explicit rejection and immediately fails the
 * payout. Everything else, timeouts, 5xx, malformed bodies, leaves the attempt
 * in flight for the reconciler to resolve against the rail's status API.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For idempotency key generation.
 * - pkg/railclient: The HTTP client for the payout rail.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
	"github.com/transfa/payout-service/pkg/railclient"
)

// ErrMethodUnavailable is returned when the payout method backing a pending
// request disappears before dispatch. The request stays pending.
var ErrMethodUnavailable = errors.New("payout method is no longer available")

// RailAPI is the subset of the rail client the dispatcher and reconciler use.
type RailAPI interface {
	SubmitPayout(ctx context.Context, params railclient.SubmitPayoutParams) (*railclient.PayoutResponse, error)
	GetPayoutStatus(ctx context.Context, operationID string) (*railclient.PayoutStatusResponse, error)
	GetPayoutStatusByReference(ctx context.Context, idempotencyKey string) (*railclient.PayoutStatusResponse, error)
}

// EventPublisher publishes settlement events to the message broker. Publishing
// is best-effort; failures are logged and never block a state transition.
type EventPublisher interface {
	PublishPayoutSettledEvent(event domain.PayoutSettledEvent) error
}

// Dispatcher moves pending payout requests onto the rail exactly once.
type Dispatcher struct {
	repo            store.Repository
	rail            RailAPI
	publisher       EventPublisher
	dispatchTimeout time.Duration
}

// NewDispatcher creates a dispatcher. `publisher` may be nil, which disables
// settlement event publishing.
func NewDispatcher(repo store.Repository, rail RailAPI, publisher EventPublisher, dispatchTimeout time.Duration) *Dispatcher {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 30 * time.Second
	}
	return &Dispatcher{
		repo:            repo,
		rail:            rail,
		publisher:       publisher,
		dispatchTimeout: dispatchTimeout,
	}
}

// Dispatch submits the request to the rail. Calling it again for a request
// that already has a ledger attempt returns that attempt without touching the
// rail, so retries after a crash or a duplicate delivery are harmless.
func (d *Dispatcher) Dispatch(ctx context.Context, requestID uuid.UUID) (*domain.PayoutAttempt, error) {
	existing, err := d.repo.FindLatestPayoutAttempt(ctx, requestID)
	if err != nil && !errors.Is(err, store.ErrAttemptNotFound) {
		return nil, fmt.Errorf("failed to consult idempotency ledger: %w", err)
	}
	if existing != nil {
		log.Printf("level=info component=dispatcher op=dispatch msg=\"attempt already recorded; skipping rail call\" request_id=%s attempt_id=%s rail_status=%s",
			requestID, existing.ID, existing.RailStatus)
		return existing, nil
	}

	req, err := d.repo.FindPayoutRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.StatusPending {
		return nil, store.ErrPayoutConflict
	}
	if req.MethodID == nil {
		return nil, ErrMethodUnavailable
	}
	method, err := d.repo.FindPayoutMethodByID(ctx, *req.MethodID, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrMethodNotFound) {
			return nil, ErrMethodUnavailable
		}
		return nil, err
	}

	attempt := &domain.PayoutAttempt{
		ID:              uuid.New(),
		PayoutRequestID: req.ID,
		AttemptNo:       1,
		IdempotencyKey:  uuid.New().String(),
		RailStatus:      domain.AttemptSubmitted,
	}
	created, err := d.repo.BeginDispatch(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to record dispatch attempt: %w", err)
	}
	if !created {
		// Lost the race to a concurrent dispatcher; its attempt stands.
		return d.repo.FindLatestPayoutAttempt(ctx, requestID)
	}

	log.Printf("level=info component=dispatcher op=dispatch request_id=%s attempt_id=%s idempotency_key=%s method_type=%s net=%d",
		req.ID, attempt.ID, attempt.IdempotencyKey, req.MethodType, req.NetAmount)

	railCtx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
	defer cancel()

	resp, err := d.rail.SubmitPayout(railCtx, railclient.SubmitPayoutParams{
		IdempotencyKey: attempt.IdempotencyKey,
		MethodType:     string(req.MethodType),
		Amount:         req.NetAmount,
		Currency:       req.Currency,
		Reference:      req.ID.String(),
		Destination:    destinationFromMethod(method),
	})
	if err != nil {
		var railErr *railclient.ErrorResponse
		if errors.As(err, &railErr) && railErr.IsExplicitRejection() {
			log.Printf("level=warn component=dispatcher op=dispatch msg=\"rail rejected payout\" request_id=%s status=%d reason=%q",
				req.ID, railErr.StatusCode, railErr.Reason())
			if _, resolveErr := d.resolve(ctx, req, attempt.ID, domain.StatusFailed, railErr.Reason()); resolveErr != nil {
				return nil, resolveErr
			}
			attempt.RailStatus = domain.AttemptFailed
			return attempt, nil
		}
		// Timeout, 5xx or transport failure: the rail may or may not have the
		// payout. Leave the attempt in flight; the reconciler will query by
		// idempotency key.
		log.Printf("level=error component=dispatcher op=dispatch msg=\"rail outcome ambiguous; deferring to reconciliation\" request_id=%s attempt_id=%s err=%v",
			req.ID, attempt.ID, err)
		return attempt, nil
	}

	if err := d.repo.RecordRailAcceptance(ctx, attempt.ID, resp.Data.ID); err != nil {
		// The operation id is recoverable via the idempotency key reference.
		log.Printf("level=error component=dispatcher op=dispatch msg=\"failed to persist rail operation id\" request_id=%s attempt_id=%s operation_id=%s err=%v",
			req.ID, attempt.ID, resp.Data.ID, err)
		return attempt, nil
	}
	operationID := resp.Data.ID
	attempt.RailOperationID = &operationID
	attempt.RailStatus = domain.AttemptAccepted
	log.Printf("level=info component=dispatcher op=dispatch msg=\"rail accepted payout\" request_id=%s operation_id=%s", req.ID, operationID)
	return attempt, nil
}

// resolve applies a terminal outcome and publishes the settlement event when
// the transition actually happened.
func (d *Dispatcher) resolve(ctx context.Context, req *domain.PayoutRequest, attemptID uuid.UUID, outcome string, failureReason string) (bool, error) {
	applied, err := d.repo.ResolvePayout(ctx, req.ID, attemptID, outcome, failureReason)
	if err != nil {
		return false, fmt.Errorf("failed to resolve payout %s: %w", req.ID, err)
	}
	if applied {
		publishSettlement(d.publisher, req, outcome, failureReason)
	}
	return applied, nil
}

// publishSettlement emits the terminal-state event. Broker failures are logged
// and swallowed.
func publishSettlement(publisher EventPublisher, req *domain.PayoutRequest, outcome string, failureReason string) {
	if publisher == nil {
		return
	}
	event := domain.PayoutSettledEvent{
		PayoutRequestID: req.ID,
		UserID:          req.UserID,
		Status:          outcome,
		Amount:          req.Amount,
		Fee:             req.Fee,
		NetAmount:       req.NetAmount,
		Currency:        req.Currency,
		Timestamp:       time.Now().UTC(),
	}
	if failureReason != "" {
		reason := failureReason
		event.FailureReason = &reason
	}
	if err := publisher.PublishPayoutSettledEvent(event); err != nil {
		log.Printf("level=error component=dispatcher op=publish_settlement msg=\"failed to publish settlement event\" request_id=%s status=%s err=%v",
			req.ID, outcome, err)
	}
}

// destinationFromMethod flattens the stored method details into the rail's
// destination shape.
func destinationFromMethod(method *domain.PayoutMethod) railclient.Destination {
	var dest railclient.Destination
	switch {
	case method.Details.Bank != nil:
		b := method.Details.Bank
		dest.AccountName = b.AccountName
		dest.AccountNumber = b.AccountNumber
		dest.RoutingNumber = b.RoutingNumber
		dest.IBAN = b.IBAN
		dest.SwiftCode = b.SwiftCode
		dest.Country = b.Country
	case method.Details.Wallet != nil:
		dest.WalletHandle = method.Details.Wallet.Handle
	case method.Details.Card != nil:
		dest.CardToken = method.Details.Card.CardToken
	case method.Details.CashPickup != nil:
		c := method.Details.CashPickup
		dest.RecipientName = c.RecipientName
		dest.City = c.City
		dest.Country = c.Country
	case method.Details.Crypto != nil:
		dest.CryptoAddress = method.Details.Crypto.Address
		dest.CryptoNetwork = method.Details.Crypto.Network
	}
	return dest
}
