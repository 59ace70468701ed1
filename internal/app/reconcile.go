/**
 * @description
 * This file contains the reconciliation loop for payouts whose rail outcome is
 * still ambiguous: the submit timed out, the rail returned a 5xx, or the
 * acknowledgement was lost. The loop sweeps unresolved ledger attempts, asks
 * the rail for the authoritative status, and either settles the payout,
 * extends the ambiguity window, or, past a hard age ceiling, parks the request
 * in needs_review for an operator.
 *
 * Attempts that never received an operation id are looked up by their
 * idempotency key reference. A definitive "not found" from the rail means the
 * submit never landed; the payout fails and the user can retry.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
	"github.com/transfa/payout-service/pkg/railclient"
)

const (
	defaultAmbiguityTimeout = 2 * time.Minute
	defaultHardCeiling      = 24 * time.Hour
	defaultReconcileLimit   = 100
)

// Reconciler resolves in-flight payouts against the rail's status API.
type Reconciler struct {
	repo             store.Repository
	rail             RailAPI
	publisher        EventPublisher
	ambiguityTimeout time.Duration
	hardCeiling      time.Duration
	batchLimit       int
}

// NewReconciler creates a reconciler. Non-positive durations and limits fall
// back to defaults; `publisher` may be nil.
func NewReconciler(repo store.Repository, rail RailAPI, publisher EventPublisher, ambiguityTimeout, hardCeiling time.Duration, batchLimit int) *Reconciler {
	if ambiguityTimeout <= 0 {
		ambiguityTimeout = defaultAmbiguityTimeout
	}
	if hardCeiling <= 0 {
		hardCeiling = defaultHardCeiling
	}
	if batchLimit <= 0 {
		batchLimit = defaultReconcileLimit
	}
	return &Reconciler{
		repo:             repo,
		rail:             rail,
		publisher:        publisher,
		ambiguityTimeout: ambiguityTimeout,
		hardCeiling:      hardCeiling,
		batchLimit:       batchLimit,
	}
}

// Run performs one reconciliation sweep and reports what it did. Individual
// candidate failures are counted, logged and skipped; only a failure to list
// candidates aborts the sweep.
func (r *Reconciler) Run(ctx context.Context) (*domain.ReconcileResult, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-r.ambiguityTimeout)

	candidates, err := r.repo.ListAmbiguousPayouts(ctx, cutoff, r.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ambiguous payouts: %w", err)
	}

	result := &domain.ReconcileResult{Scanned: len(candidates)}
	for i := range candidates {
		req := &candidates[i].Request
		attempt := &candidates[i].Attempt

		if now.Sub(attempt.SubmittedAt) > r.hardCeiling {
			escalated, escErr := r.repo.EscalatePayoutToReview(ctx, req.ID, "ambiguous beyond reconciliation ceiling")
			if escErr != nil {
				result.SweepFailures++
				log.Printf("level=error component=reconciler op=sweep msg=\"failed to escalate payout\" request_id=%s err=%v", req.ID, escErr)
				continue
			}
			if escalated {
				result.Escalated++
				log.Printf("level=error component=reconciler op=sweep msg=\"payout escalated for manual review\" request_id=%s attempt_id=%s age=%s",
					req.ID, attempt.ID, now.Sub(attempt.SubmittedAt).Truncate(time.Second))
			}
			continue
		}

		status, statusErr := r.queryRail(ctx, attempt)
		if statusErr != nil {
			if errors.Is(statusErr, railclient.ErrOperationNotFound) {
				// The rail has no record of this payout. The submit never
				// landed, so no money can move; fail it.
				if r.settle(ctx, result, req, attempt, domain.StatusFailed, "not found at rail") {
					log.Printf("level=warn component=reconciler op=sweep msg=\"rail has no record of payout; marked failed\" request_id=%s attempt_id=%s", req.ID, attempt.ID)
				}
				continue
			}
			result.SweepFailures++
			log.Printf("level=warn component=reconciler op=sweep msg=\"rail status query failed\" request_id=%s attempt_id=%s err=%v", req.ID, attempt.ID, statusErr)
			continue
		}

		// A reference lookup can surface an operation id the dispatcher never
		// got to persist.
		if attempt.RailOperationID == nil && status.Data.ID != "" {
			if recErr := r.repo.RecordRailAcceptance(ctx, attempt.ID, status.Data.ID); recErr != nil {
				log.Printf("level=warn component=reconciler op=sweep msg=\"failed to backfill rail operation id\" attempt_id=%s operation_id=%s err=%v",
					attempt.ID, status.Data.ID, recErr)
			}
		}

		switch status.Data.Status {
		case railclient.OperationSucceeded:
			r.settle(ctx, result, req, attempt, domain.StatusCompleted, "")
		case railclient.OperationFailed:
			reason := status.Data.Reason
			if reason == "" {
				reason = "failed at rail"
			}
			r.settle(ctx, result, req, attempt, domain.StatusFailed, reason)
		default:
			// Still processing at the rail. Extend the window so the next
			// sweep picks it up again after the timeout.
			if touchErr := r.repo.TouchPayoutAttempt(ctx, attempt.ID); touchErr != nil {
				result.SweepFailures++
				log.Printf("level=warn component=reconciler op=sweep msg=\"failed to extend ambiguity window\" attempt_id=%s err=%v", attempt.ID, touchErr)
				continue
			}
			result.Extended++
		}
	}

	log.Printf("level=info component=reconciler op=sweep scanned=%d completed=%d failed=%d extended=%d escalated=%d sweep_failures=%d",
		result.Scanned, result.Completed, result.Failed, result.Extended, result.Escalated, result.SweepFailures)
	return result, nil
}

func (r *Reconciler) queryRail(ctx context.Context, attempt *domain.PayoutAttempt) (*railclient.PayoutStatusResponse, error) {
	if attempt.RailOperationID != nil && *attempt.RailOperationID != "" {
		return r.rail.GetPayoutStatus(ctx, *attempt.RailOperationID)
	}
	return r.rail.GetPayoutStatusByReference(ctx, attempt.IdempotencyKey)
}

// settle applies a terminal outcome, counts it, and publishes the settlement
// event. Returns whether the transition was applied.
func (r *Reconciler) settle(ctx context.Context, result *domain.ReconcileResult, req *domain.PayoutRequest, attempt *domain.PayoutAttempt, outcome string, failureReason string) bool {
	applied, err := r.repo.ResolvePayout(ctx, req.ID, attempt.ID, outcome, failureReason)
	if err != nil {
		result.SweepFailures++
		log.Printf("level=error component=reconciler op=sweep msg=\"failed to settle payout\" request_id=%s outcome=%s err=%v", req.ID, outcome, err)
		return false
	}
	if !applied {
		// A webhook beat the sweep to it.
		return false
	}
	switch outcome {
	case domain.StatusCompleted:
		result.Completed++
	case domain.StatusFailed:
		result.Failed++
	}
	log.Printf("level=info component=reconciler op=sweep msg=\"payout settled via reconciliation\" request_id=%s outcome=%s", req.ID, outcome)
	publishSettlement(r.publisher, req, outcome, failureReason)
	return true
}
