package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

type webhookRepoStub struct {
	store.Repository

	request *domain.PayoutRequest
	attempt *domain.PayoutAttempt

	seenEvents     map[string]bool
	resolveApplied bool
	resolveErr     error

	resolveCalled   bool
	resolvedOutcome string
	resolvedReason  string
}

func newWebhookRepoStub(request *domain.PayoutRequest, attempt *domain.PayoutAttempt) *webhookRepoStub {
	return &webhookRepoStub{
		request:        request,
		attempt:        attempt,
		seenEvents:     make(map[string]bool),
		resolveApplied: true,
	}
}

func (s *webhookRepoStub) WebhookEventSeen(ctx context.Context, eventID string) (bool, error) {
	return s.seenEvents[eventID], nil
}

func (s *webhookRepoStub) RecordWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	if s.seenEvents[eventID] {
		return false, nil
	}
	s.seenEvents[eventID] = true
	return true, nil
}

func (s *webhookRepoStub) FindPayoutAttemptByOperationID(ctx context.Context, operationID string) (*domain.PayoutAttempt, error) {
	if s.attempt == nil || s.attempt.RailOperationID == nil || *s.attempt.RailOperationID != operationID {
		return nil, store.ErrAttemptNotFound
	}
	return s.attempt, nil
}

func (s *webhookRepoStub) FindPayoutRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.PayoutRequest, error) {
	return s.request, nil
}

func (s *webhookRepoStub) ResolvePayoutFromWebhook(ctx context.Context, eventID string, requestID uuid.UUID, attemptID uuid.UUID, outcome string, failureReason string) (bool, error) {
	if s.resolveErr != nil {
		return false, s.resolveErr
	}
	if s.seenEvents[eventID] {
		return false, nil
	}
	s.seenEvents[eventID] = true
	s.resolveCalled = true
	s.resolvedOutcome = outcome
	s.resolvedReason = failureReason
	return s.resolveApplied, nil
}

func processingPayoutWithAttempt() (*domain.PayoutRequest, *domain.PayoutAttempt) {
	operationID := "op_7"
	request := &domain.PayoutRequest{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		MethodType: domain.MethodWallet,
		Amount:     5000,
		Fee:        125,
		NetAmount:  4875,
		Currency:   "USD",
		Status:     domain.StatusProcessing,
	}
	attempt := &domain.PayoutAttempt{
		ID:              uuid.New(),
		PayoutRequestID: request.ID,
		AttemptNo:       1,
		IdempotencyKey:  uuid.New().String(),
		RailOperationID: &operationID,
		RailStatus:      domain.AttemptAccepted,
	}
	return request, attempt
}

func TestWebhookProcess_SuccessCompletesPayout(t *testing.T) {
	request, attempt := processingPayoutWithAttempt()
	repo := newWebhookRepoStub(request, attempt)
	ingestor := NewWebhookIngestor(repo, nil)

	err := ingestor.Process(context.Background(), domain.RailWebhookEvent{
		EventID:     "evt_1",
		OperationID: "op_7",
		Outcome:     domain.WebhookOutcomeSucceeded,
		OccurredAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("expected success event to process, got %v", err)
	}
	if repo.resolvedOutcome != domain.StatusCompleted {
		t.Fatalf("expected completion, got %q", repo.resolvedOutcome)
	}
}

func TestWebhookProcess_ReplayIsNoOp(t *testing.T) {
	request, attempt := processingPayoutWithAttempt()
	repo := newWebhookRepoStub(request, attempt)
	ingestor := NewWebhookIngestor(repo, nil)

	event := domain.RailWebhookEvent{
		EventID:     "evt_1",
		OperationID: "op_7",
		Outcome:     domain.WebhookOutcomeSucceeded,
	}
	if err := ingestor.Process(context.Background(), event); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}

	repo.resolveCalled = false
	if err := ingestor.Process(context.Background(), event); err != nil {
		t.Fatalf("replayed delivery failed: %v", err)
	}
	if repo.resolveCalled {
		t.Fatal("expected replayed event to cause no state change")
	}
}

func TestWebhookProcess_RedeliveryAfterFailureAppliesTransition(t *testing.T) {
	request, attempt := processingPayoutWithAttempt()
	repo := newWebhookRepoStub(request, attempt)
	ingestor := NewWebhookIngestor(repo, nil)

	event := domain.RailWebhookEvent{
		EventID:     "evt_retry",
		OperationID: "op_7",
		Outcome:     domain.WebhookOutcomeSucceeded,
	}

	// The first delivery dies mid-transaction. The event id must not stick,
	// or the redelivery would be discarded as a replay and the payout would
	// sit in processing until the reconciler sweeps it.
	repo.resolveErr = errors.New("connection reset by peer")
	if err := ingestor.Process(context.Background(), event); err == nil {
		t.Fatal("expected the failed delivery to propagate an error")
	}
	if repo.seenEvents["evt_retry"] {
		t.Fatal("expected no dedup record after a failed delivery")
	}

	repo.resolveErr = nil
	if err := ingestor.Process(context.Background(), event); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if repo.resolvedOutcome != domain.StatusCompleted {
		t.Fatalf("expected redelivery to complete the payout, got %q", repo.resolvedOutcome)
	}
}

func TestWebhookProcess_FailureCarriesReason(t *testing.T) {
	request, attempt := processingPayoutWithAttempt()
	repo := newWebhookRepoStub(request, attempt)
	ingestor := NewWebhookIngestor(repo, nil)

	err := ingestor.Process(context.Background(), domain.RailWebhookEvent{
		EventID:     "evt_2",
		OperationID: "op_7",
		Outcome:     domain.WebhookOutcomeFailed,
		Reason:      "beneficiary bank unavailable",
	})
	if err != nil {
		t.Fatalf("expected failure event to process, got %v", err)
	}
	if repo.resolvedOutcome != domain.StatusFailed {
		t.Fatalf("expected failure, got %q", repo.resolvedOutcome)
	}
	if repo.resolvedReason != "beneficiary bank unavailable" {
		t.Fatalf("expected rail reason to be recorded, got %q", repo.resolvedReason)
	}
}

func TestWebhookProcess_UnknownOperationIsDiscarded(t *testing.T) {
	request, attempt := processingPayoutWithAttempt()
	repo := newWebhookRepoStub(request, attempt)
	ingestor := NewWebhookIngestor(repo, nil)

	err := ingestor.Process(context.Background(), domain.RailWebhookEvent{
		EventID:     "evt_3",
		OperationID: "op_unknown",
		Outcome:     domain.WebhookOutcomeSucceeded,
	})
	if err != nil {
		t.Fatalf("expected unknown operation to be acknowledged, got %v", err)
	}
	if repo.resolveCalled {
		t.Fatal("expected no state change for an unknown operation")
	}
}

func TestWebhookProcess_AlreadySettledPayoutIgnoresEvent(t *testing.T) {
	request, attempt := processingPayoutWithAttempt()
	request.Status = domain.StatusCompleted
	repo := newWebhookRepoStub(request, attempt)
	repo.resolveApplied = false
	ingestor := NewWebhookIngestor(repo, nil)

	err := ingestor.Process(context.Background(), domain.RailWebhookEvent{
		EventID:     "evt_4",
		OperationID: "op_7",
		Outcome:     domain.WebhookOutcomeFailed,
		Reason:      "late contradiction",
	})
	if err != nil {
		t.Fatalf("expected late event to be acknowledged, got %v", err)
	}
}

func TestWebhookProcess_ReversalOnCompletedPayoutDoesNotTransition(t *testing.T) {
	request, attempt := processingPayoutWithAttempt()
	request.Status = domain.StatusCompleted
	repo := newWebhookRepoStub(request, attempt)
	ingestor := NewWebhookIngestor(repo, nil)

	err := ingestor.Process(context.Background(), domain.RailWebhookEvent{
		EventID:     "evt_5",
		OperationID: "op_7",
		Outcome:     domain.WebhookOutcomeReversed,
	})
	if err != nil {
		t.Fatalf("expected reversal on completed payout to be acknowledged, got %v", err)
	}
	if repo.resolveCalled {
		t.Fatal("expected no transition out of completed")
	}
}

func TestWebhookProcess_ReversalBeforeCompletionFailsPayout(t *testing.T) {
	request, attempt := processingPayoutWithAttempt()
	repo := newWebhookRepoStub(request, attempt)
	ingestor := NewWebhookIngestor(repo, nil)

	err := ingestor.Process(context.Background(), domain.RailWebhookEvent{
		EventID:     "evt_6",
		OperationID: "op_7",
		Outcome:     domain.WebhookOutcomeReversed,
	})
	if err != nil {
		t.Fatalf("expected reversal to process, got %v", err)
	}
	if repo.resolvedOutcome != domain.StatusFailed {
		t.Fatalf("expected reversal to fail the payout, got %q", repo.resolvedOutcome)
	}
	if repo.resolvedReason != "reversed by rail" {
		t.Fatalf("expected default reversal reason, got %q", repo.resolvedReason)
	}
}
