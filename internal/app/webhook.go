/**
 * @description
 * This file contains the webhook ingestor, the asynchronous settlement path.
 * The rail notifies us of terminal payout outcomes via signed webhooks; the
 * HTTP layer verifies the signature and hands the decoded event here.
 *
 * Delivery is at-least-once, so every event id lands in a durable dedup
 * table. For events that settle a payout the dedup record is written in the
 * same transaction as the transition, so a delivery that fails mid-way leaves
 * no record and the rail's redelivery retries the transition. Replays, events
 * for unknown operations, and events for already-settled requests are all
 * acknowledged without effect; returning an error from Process means the
 * delivery should be retried, so only infrastructure failures propagate.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

// WebhookIngestor applies rail settlement notifications to payout requests.
type WebhookIngestor struct {
	repo      store.Repository
	publisher EventPublisher
}

// NewWebhookIngestor creates a webhook ingestor. `publisher` may be nil.
func NewWebhookIngestor(repo store.Repository, publisher EventPublisher) *WebhookIngestor {
	return &WebhookIngestor{repo: repo, publisher: publisher}
}

// Process applies one verified webhook event. It is safe to call with the
// same event any number of times.
func (w *WebhookIngestor) Process(ctx context.Context, event domain.RailWebhookEvent) error {
	seen, err := w.repo.WebhookEventSeen(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check webhook event: %w", err)
	}
	if seen {
		log.Printf("level=info component=webhook_ingestor op=process msg=\"replayed event; ignoring\" event_id=%s", event.EventID)
		return nil
	}

	attempt, err := w.repo.FindPayoutAttemptByOperationID(ctx, event.OperationID)
	if err != nil {
		if errors.Is(err, store.ErrAttemptNotFound) {
			// The operation belongs to another service or predates this one.
			log.Printf("level=warn component=webhook_ingestor op=process msg=\"no attempt for rail operation; discarding\" event_id=%s operation_id=%s",
				event.EventID, event.OperationID)
			w.acknowledge(ctx, event.EventID)
			return nil
		}
		return err
	}

	req, err := w.repo.FindPayoutRequestByID(ctx, attempt.PayoutRequestID)
	if err != nil {
		return err
	}

	switch event.Outcome {
	case domain.WebhookOutcomeSucceeded:
		return w.apply(ctx, event.EventID, req, attempt, domain.StatusCompleted, "")
	case domain.WebhookOutcomeFailed:
		return w.apply(ctx, event.EventID, req, attempt, domain.StatusFailed, event.Reason)
	case domain.WebhookOutcomeReversed:
		if req.Status == domain.StatusCompleted {
			// Completed is terminal. A reversal after completion is a
			// ledger discrepancy that needs an operator, not a transition.
			log.Printf("level=error component=webhook_ingestor op=process msg=\"reversal received for completed payout; manual review required\" request_id=%s operation_id=%s event_id=%s",
				req.ID, event.OperationID, event.EventID)
			w.acknowledge(ctx, event.EventID)
			return nil
		}
		reason := event.Reason
		if reason == "" {
			reason = "reversed by rail"
		}
		return w.apply(ctx, event.EventID, req, attempt, domain.StatusFailed, reason)
	default:
		log.Printf("level=warn component=webhook_ingestor op=process msg=\"unknown outcome; discarding\" event_id=%s outcome=%q", event.EventID, event.Outcome)
		w.acknowledge(ctx, event.EventID)
		return nil
	}
}

// apply settles the payout and records the event id in one transaction. An
// error here leaves the event unrecorded, so the rail's redelivery retries
// the whole thing.
func (w *WebhookIngestor) apply(ctx context.Context, eventID string, req *domain.PayoutRequest, attempt *domain.PayoutAttempt, outcome string, failureReason string) error {
	applied, err := w.repo.ResolvePayoutFromWebhook(ctx, eventID, req.ID, attempt.ID, outcome, failureReason)
	if err != nil {
		return fmt.Errorf("failed to resolve payout %s from webhook: %w", req.ID, err)
	}
	if !applied {
		// The request already left processing, via an earlier webhook or the
		// reconciler, or the event raced a concurrent delivery of itself.
		log.Printf("level=info component=webhook_ingestor op=process msg=\"payout already settled or event replayed; ignoring\" request_id=%s status=%s outcome=%s",
			req.ID, req.Status, outcome)
		return nil
	}
	log.Printf("level=info component=webhook_ingestor op=process msg=\"payout settled via webhook\" request_id=%s outcome=%s", req.ID, outcome)
	publishSettlement(w.publisher, req, outcome, failureReason)
	return nil
}

// acknowledge records an event that produced no transition, so its replays
// short-circuit. Best-effort: a failure only means a replay re-runs a no-op.
func (w *WebhookIngestor) acknowledge(ctx context.Context, eventID string) {
	if _, err := w.repo.RecordWebhookEvent(ctx, eventID); err != nil {
		log.Printf("level=warn component=webhook_ingestor op=process msg=\"failed to record discarded event\" event_id=%s err=%v", eventID, err)
	}
}
