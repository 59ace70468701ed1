package railclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestErrorResponse_IsExplicitRejection(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       bool
	}{
		{name: "bad request is a rejection", statusCode: 400, want: true},
		{name: "unprocessable is a rejection", statusCode: 422, want: true},
		{name: "request timeout is ambiguous", statusCode: 408, want: false},
		{name: "throttling is ambiguous", statusCode: 429, want: false},
		{name: "server error is ambiguous", statusCode: 500, want: false},
		{name: "bad gateway is ambiguous", statusCode: 502, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &ErrorResponse{StatusCode: tt.statusCode}
			if got := e.IsExplicitRejection(); got != tt.want {
				t.Fatalf("status %d: expected %t, got %t", tt.statusCode, tt.want, got)
			}
		})
	}
}

func TestSubmitPayout_SendsIdempotencyKeyHeader(t *testing.T) {
	var gotKey, gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAPIKey = r.Header.Get("x-rail-key")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"data":{"id":"op_1","status":"processing"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	resp, err := client.SubmitPayout(context.Background(), SubmitPayoutParams{
		IdempotencyKey: "idem-123",
		MethodType:     "wallet",
		Amount:         4875,
		Currency:       "USD",
	})
	if err != nil {
		t.Fatalf("expected submit to succeed, got %v", err)
	}
	if resp.Data.ID != "op_1" {
		t.Fatalf("expected operation id op_1, got %q", resp.Data.ID)
	}
	if gotKey != "idem-123" {
		t.Fatalf("expected idempotency key header, got %q", gotKey)
	}
	if gotAPIKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotAPIKey)
	}
}

func TestSubmitPayout_DecodesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"errors":[{"title":"Rejected","detail":"account frozen"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.SubmitPayout(context.Background(), SubmitPayoutParams{IdempotencyKey: "idem-1"})
	if err == nil {
		t.Fatal("expected an error for a 422 response")
	}

	var railErr *ErrorResponse
	if !errors.As(err, &railErr) {
		t.Fatalf("expected *ErrorResponse, got %T", err)
	}
	if !railErr.IsExplicitRejection() {
		t.Fatal("expected a 422 to classify as an explicit rejection")
	}
	if railErr.Reason() != "account frozen" {
		t.Fatalf("expected rejection detail, got %q", railErr.Reason())
	}
}

func TestGetPayoutStatus_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	_, err := client.GetPayoutStatus(context.Background(), "op_missing")
	if !errors.Is(err, ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
}
