package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
	"github.com/transfa/payout-service/pkg/railclient"
)

type dispatcherRepoStub struct {
	store.Repository

	request       *domain.PayoutRequest
	method        *domain.PayoutMethod
	latestAttempt *domain.PayoutAttempt
	methodErr     error

	beginDispatchCalled bool
	dispatchedAttempt   *domain.PayoutAttempt
	acceptedOperationID string
	resolvedOutcome     string
	resolvedReason      string
}

func (s *dispatcherRepoStub) FindLatestPayoutAttempt(ctx context.Context, requestID uuid.UUID) (*domain.PayoutAttempt, error) {
	if s.latestAttempt == nil {
		return nil, store.ErrAttemptNotFound
	}
	return s.latestAttempt, nil
}

func (s *dispatcherRepoStub) FindPayoutRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.PayoutRequest, error) {
	return s.request, nil
}

func (s *dispatcherRepoStub) FindPayoutMethodByID(ctx context.Context, methodID uuid.UUID, userID uuid.UUID) (*domain.PayoutMethod, error) {
	if s.methodErr != nil {
		return nil, s.methodErr
	}
	return s.method, nil
}

func (s *dispatcherRepoStub) BeginDispatch(ctx context.Context, attempt *domain.PayoutAttempt) (bool, error) {
	s.beginDispatchCalled = true
	s.dispatchedAttempt = attempt
	return true, nil
}

func (s *dispatcherRepoStub) RecordRailAcceptance(ctx context.Context, attemptID uuid.UUID, operationID string) error {
	s.acceptedOperationID = operationID
	return nil
}

func (s *dispatcherRepoStub) ResolvePayout(ctx context.Context, requestID uuid.UUID, attemptID uuid.UUID, outcome string, failureReason string) (bool, error) {
	s.resolvedOutcome = outcome
	s.resolvedReason = failureReason
	return true, nil
}

func pendingRequestForDispatch(userID uuid.UUID, method *domain.PayoutMethod) *domain.PayoutRequest {
	methodID := method.ID
	return &domain.PayoutRequest{
		ID:          uuid.New(),
		UserID:      userID,
		MethodID:    &methodID,
		MethodType:  method.Type,
		MethodLabel: method.Label,
		Amount:      10000,
		Currency:    "USD",
		Fee:         200,
		NetAmount:   9800,
		Status:      domain.StatusPending,
	}
}

func TestDispatch_ReusesExistingAttemptWithoutRailCall(t *testing.T) {
	var railCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&railCalls, 1)
		http.Error(w, "should not be called", http.StatusInternalServerError)
	}))
	defer server.Close()

	operationID := "op_1"
	existing := &domain.PayoutAttempt{
		ID:              uuid.New(),
		PayoutRequestID: uuid.New(),
		AttemptNo:       1,
		IdempotencyKey:  uuid.New().String(),
		RailOperationID: &operationID,
		RailStatus:      domain.AttemptAccepted,
	}
	repo := &dispatcherRepoStub{latestAttempt: existing}
	d := NewDispatcher(repo, railclient.NewClient(server.URL, "test-key"), nil, time.Second)

	attempt, err := d.Dispatch(context.Background(), existing.PayoutRequestID)
	if err != nil {
		t.Fatalf("expected dispatch to return the recorded attempt, got %v", err)
	}
	if attempt.ID != existing.ID {
		t.Fatalf("expected existing attempt %s, got %s", existing.ID, attempt.ID)
	}
	if repo.beginDispatchCalled {
		t.Fatal("expected no new ledger attempt")
	}
	if atomic.LoadInt32(&railCalls) != 0 {
		t.Fatal("expected no rail call for an already-dispatched request")
	}
}

func TestDispatch_RecordsLedgerBeforeRailAndAcceptance(t *testing.T) {
	var sawIdempotencyKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIdempotencyKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":"op_42","status":"processing"}}`)
	}))
	defer server.Close()

	userID := uuid.New()
	method := internationalBankMethod(userID)
	repo := &dispatcherRepoStub{method: method}
	repo.request = pendingRequestForDispatch(userID, method)
	d := NewDispatcher(repo, railclient.NewClient(server.URL, "test-key"), nil, time.Second)

	attempt, err := d.Dispatch(context.Background(), repo.request.ID)
	if err != nil {
		t.Fatalf("expected dispatch to succeed, got %v", err)
	}
	if !repo.beginDispatchCalled {
		t.Fatal("expected ledger attempt before the rail call")
	}
	if repo.dispatchedAttempt.IdempotencyKey != sawIdempotencyKey {
		t.Fatalf("expected the recorded idempotency key on the wire, ledger=%q wire=%q",
			repo.dispatchedAttempt.IdempotencyKey, sawIdempotencyKey)
	}
	if repo.acceptedOperationID != "op_42" {
		t.Fatalf("expected operation id op_42 to be persisted, got %q", repo.acceptedOperationID)
	}
	if attempt.RailStatus != domain.AttemptAccepted {
		t.Fatalf("expected accepted attempt, got %q", attempt.RailStatus)
	}
	if repo.resolvedOutcome != "" {
		t.Fatal("expected no terminal resolution on acceptance")
	}
}

func TestDispatch_ExplicitRejectionFailsPayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":[{"title":"Rejected","detail":"destination account closed"}]}`)
	}))
	defer server.Close()

	userID := uuid.New()
	method := internationalBankMethod(userID)
	repo := &dispatcherRepoStub{method: method}
	repo.request = pendingRequestForDispatch(userID, method)
	d := NewDispatcher(repo, railclient.NewClient(server.URL, "test-key"), nil, time.Second)

	attempt, err := d.Dispatch(context.Background(), repo.request.ID)
	if err != nil {
		t.Fatalf("expected explicit rejection to settle without error, got %v", err)
	}
	if repo.resolvedOutcome != domain.StatusFailed {
		t.Fatalf("expected payout to fail, got outcome %q", repo.resolvedOutcome)
	}
	if repo.resolvedReason != "destination account closed" {
		t.Fatalf("expected rail detail as failure reason, got %q", repo.resolvedReason)
	}
	if attempt.RailStatus != domain.AttemptFailed {
		t.Fatalf("expected failed attempt, got %q", attempt.RailStatus)
	}
}

func TestDispatch_AmbiguousOutcomeLeavesAttemptInFlight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	userID := uuid.New()
	method := internationalBankMethod(userID)
	repo := &dispatcherRepoStub{method: method}
	repo.request = pendingRequestForDispatch(userID, method)
	d := NewDispatcher(repo, railclient.NewClient(server.URL, "test-key"), nil, time.Second)

	attempt, err := d.Dispatch(context.Background(), repo.request.ID)
	if err != nil {
		t.Fatalf("expected ambiguous outcome to defer, got %v", err)
	}
	if attempt.RailStatus != domain.AttemptSubmitted {
		t.Fatalf("expected attempt to stay submitted, got %q", attempt.RailStatus)
	}
	if repo.resolvedOutcome != "" {
		t.Fatalf("expected no terminal resolution, got %q", repo.resolvedOutcome)
	}
	if repo.acceptedOperationID != "" {
		t.Fatal("expected no operation id on an unacknowledged submit")
	}
}

func TestDispatch_SettledRequestCannotReenterProcessing(t *testing.T) {
	var railCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&railCalls, 1)
	}))
	defer server.Close()

	userID := uuid.New()
	method := internationalBankMethod(userID)
	repo := &dispatcherRepoStub{method: method}
	repo.request = pendingRequestForDispatch(userID, method)
	repo.request.Status = domain.StatusCompleted
	d := NewDispatcher(repo, railclient.NewClient(server.URL, "test-key"), nil, time.Second)

	_, err := d.Dispatch(context.Background(), repo.request.ID)
	if !errors.Is(err, store.ErrPayoutConflict) {
		t.Fatalf("expected ErrPayoutConflict for a completed request, got %v", err)
	}
	if repo.beginDispatchCalled {
		t.Fatal("expected no ledger attempt for a settled request")
	}
	if atomic.LoadInt32(&railCalls) != 0 {
		t.Fatal("expected no rail call for a settled request")
	}
}

func TestDispatch_MissingMethodLeavesRequestPending(t *testing.T) {
	var railCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&railCalls, 1)
	}))
	defer server.Close()

	userID := uuid.New()
	method := internationalBankMethod(userID)
	repo := &dispatcherRepoStub{methodErr: store.ErrMethodNotFound}
	repo.request = pendingRequestForDispatch(userID, method)
	d := NewDispatcher(repo, railclient.NewClient(server.URL, "test-key"), nil, time.Second)

	_, err := d.Dispatch(context.Background(), repo.request.ID)
	if err == nil {
		t.Fatal("expected dispatch to fail when the method is gone")
	}
	if repo.beginDispatchCalled {
		t.Fatal("expected no ledger attempt without a method")
	}
	if atomic.LoadInt32(&railCalls) != 0 {
		t.Fatal("expected no rail call without a method")
	}
}
