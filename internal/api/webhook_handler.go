/**
 * @description
 * This file contains the HTTP handler for incoming webhooks from the payout
 * rail. It is the entry point for asynchronous settlement notifications.
 *
 * Key features:
 * - Security: Validates the HMAC-SHA256 signature of the raw body before any
 *   parsing. An invalid or missing signature is rejected with 401.
 * - Parsing: Decodes the JSON payload into the rail webhook event model.
 * - Durability: Delegates to the ingestor, which records the event id in a
 *   durable dedup table, so replays across restarts are harmless.
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/base64, encoding/hex: For signature validation.
 * - encoding/json, io, net/http: For request handling.
 * - internal/app, internal/domain: For the ingestion logic and event model.
 */

package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/transfa/payout-service/internal/app"
	"github.com/transfa/payout-service/internal/domain"
)

// RailWebhookHandler processes settlement webhooks from the rail.
type RailWebhookHandler struct {
	ingestor *app.WebhookIngestor
	secret   string
}

// NewRailWebhookHandler creates a handler for the webhook endpoint.
func NewRailWebhookHandler(ingestor *app.WebhookIngestor, secret string) *RailWebhookHandler {
	return &RailWebhookHandler{ingestor: ingestor, secret: secret}
}

// ServeHTTP implements the http.Handler interface.
func (h *RailWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("level=warn component=webhook_api msg=\"cannot read webhook body\" err=%v", err)
		http.Error(w, "Cannot read request body", http.StatusBadRequest)
		return
	}

	if !h.isValidSignature(r.Header.Get("x-rail-signature"), body) {
		log.Printf("level=warn component=webhook_api msg=\"invalid webhook signature\" remote=%s", r.RemoteAddr)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event domain.RailWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=webhook_api msg=\"invalid webhook json\" err=%v", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if event.EventID == "" || event.OperationID == "" {
		http.Error(w, "Missing event_id or operation_id", http.StatusBadRequest)
		return
	}

	if err := h.ingestor.Process(r.Context(), event); err != nil {
		// Non-2xx tells the rail to redeliver; the dedup table makes that safe.
		log.Printf("level=error component=webhook_api msg=\"webhook processing failed\" event_id=%s err=%v", event.EventID, err)
		http.Error(w, "Internal server error during event processing", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Webhook received"))
}

// isValidSignature checks the HMAC-SHA256 of the raw body against the header.
// Accepts hex and base64 encodings, with or without a "sha256=" prefix.
func (h *RailWebhookHandler) isValidSignature(signatureHeader string, body []byte) bool {
	if h.secret == "" {
		log.Println("Warning: RAIL_WEBHOOK_SECRET is not set. Skipping signature validation.")
		return true
	}

	header := strings.TrimSpace(signatureHeader)
	if header == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(header), "sha256=") {
		header = header[len("sha256="):]
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if decoded, err := hex.DecodeString(header); err == nil && hmac.Equal(decoded, expected) {
		return true
	}
	if decoded, err := base64.StdEncoding.DecodeString(header); err == nil && hmac.Equal(decoded, expected) {
		return true
	}
	return false
}
