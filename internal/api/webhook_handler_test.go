package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/transfa/payout-service/internal/app"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

type webhookEventRepoStub struct {
	store.Repository

	recordedEventIDs []string
}

func (s *webhookEventRepoStub) WebhookEventSeen(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

func (s *webhookEventRepoStub) RecordWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	s.recordedEventIDs = append(s.recordedEventIDs, eventID)
	return true, nil
}

func (s *webhookEventRepoStub) FindPayoutAttemptByOperationID(ctx context.Context, operationID string) (*domain.PayoutAttempt, error) {
	return nil, store.ErrAttemptNotFound
}

func signBody(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func TestRailWebhookHandler_RejectsInvalidSignature(t *testing.T) {
	repo := &webhookEventRepoStub{}
	handler := NewRailWebhookHandler(app.NewWebhookIngestor(repo, nil), "shh")

	body := []byte(`{"event_id":"evt_1","operation_id":"op_1","outcome":"succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/rail", bytes.NewReader(body))
	req.Header.Set("x-rail-signature", "deadbeef")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad signature, got %d", rec.Code)
	}
	if len(repo.recordedEventIDs) != 0 {
		t.Fatal("expected no event processing on a bad signature")
	}
}

func TestRailWebhookHandler_RejectsMissingSignature(t *testing.T) {
	handler := NewRailWebhookHandler(app.NewWebhookIngestor(&webhookEventRepoStub{}, nil), "shh")

	body := []byte(`{"event_id":"evt_1","operation_id":"op_1","outcome":"succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/rail", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a missing signature, got %d", rec.Code)
	}
}

func TestRailWebhookHandler_AcceptsHexSignature(t *testing.T) {
	repo := &webhookEventRepoStub{}
	handler := NewRailWebhookHandler(app.NewWebhookIngestor(repo, nil), "shh")

	body := []byte(`{"event_id":"evt_1","operation_id":"op_1","outcome":"succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/rail", bytes.NewReader(body))
	req.Header.Set("x-rail-signature", hex.EncodeToString(signBody("shh", body)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a valid hex signature, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.recordedEventIDs) != 1 || repo.recordedEventIDs[0] != "evt_1" {
		t.Fatalf("expected event evt_1 to be recorded, got %v", repo.recordedEventIDs)
	}
}

func TestRailWebhookHandler_AcceptsPrefixedBase64Signature(t *testing.T) {
	repo := &webhookEventRepoStub{}
	handler := NewRailWebhookHandler(app.NewWebhookIngestor(repo, nil), "shh")

	body := []byte(`{"event_id":"evt_2","operation_id":"op_1","outcome":"failed","reason":"closed"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/rail", bytes.NewReader(body))
	req.Header.Set("x-rail-signature", "sha256="+base64.StdEncoding.EncodeToString(signBody("shh", body)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a valid base64 signature, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRailWebhookHandler_RejectsPayloadWithoutIdentifiers(t *testing.T) {
	handler := NewRailWebhookHandler(app.NewWebhookIngestor(&webhookEventRepoStub{}, nil), "shh")

	body := []byte(`{"outcome":"succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/rail", bytes.NewReader(body))
	req.Header.Set("x-rail-signature", hex.EncodeToString(signBody("shh", body)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing identifiers, got %d", rec.Code)
	}
}
