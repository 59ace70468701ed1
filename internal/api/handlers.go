/**
 * @description
 * This file contains the HTTP handlers for the payout-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/app"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

// PayoutHandlers holds the application components that handlers use.
type PayoutHandlers struct {
	service    *app.Service
	dispatcher *app.Dispatcher
	reconciler *app.Reconciler
}

// NewPayoutHandlers creates a new instance of PayoutHandlers.
func NewPayoutHandlers(service *app.Service, dispatcher *app.Dispatcher, reconciler *app.Reconciler) *PayoutHandlers {
	return &PayoutHandlers{service: service, dispatcher: dispatcher, reconciler: reconciler}
}

// payoutResponse mirrors the shape clients read after initiating or fetching a
// payout request.
type payoutResponse struct {
	PayoutID      string  `json:"payout_id"`
	Status        string  `json:"status"`
	Message       string  `json:"message,omitempty"`
	MethodType    string  `json:"method_type"`
	MethodLabel   string  `json:"method_label"`
	Amount        int64   `json:"amount"`
	Fee           int64   `json:"fee"`
	NetAmount     int64   `json:"net_amount"`
	Currency      string  `json:"currency"`
	Reference     *string `json:"reference,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	CompletedAt   *string `json:"completed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func buildPayoutResponse(req *domain.PayoutRequest, message string) payoutResponse {
	resp := payoutResponse{
		PayoutID:      req.ID.String(),
		Status:        req.Status,
		Message:       message,
		MethodType:    string(req.MethodType),
		MethodLabel:   req.MethodLabel,
		Amount:        req.Amount,
		Fee:           req.Fee,
		NetAmount:     req.NetAmount,
		Currency:      req.Currency,
		Reference:     req.Reference,
		FailureReason: req.FailureReason,
		CreatedAt:     req.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if req.CompletedAt != nil {
		completed := req.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.CompletedAt = &completed
	}
	return resp
}

// authenticatedUserID pulls the caller's UUID out of the request context.
func (h *PayoutHandlers) authenticatedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("level=warn component=api msg=\"token subject is not a uuid\" subject=%s", userIDStr)
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return userID, true
}

// CreatePayoutHandler handles requests to create and dispatch a payout.
func (h *PayoutHandlers) CreatePayoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.CreatePayoutRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("level=warn component=api endpoint=create_payout outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	req, err := h.service.CreatePayoutRequest(r.Context(), userID, payload)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_payout outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, app.ErrRateLimited):
			h.writeError(w, http.StatusTooManyRequests, err.Error())
		case errors.Is(err, store.ErrMethodNotFound):
			h.writeError(w, http.StatusNotFound, "Payout method not found")
		case errors.Is(err, app.ErrInvalidAmount),
			errors.Is(err, app.ErrAmountTooLarge),
			errors.Is(err, app.ErrUnsupportedCurrency):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	// Hand the pending request to the rail in-line. A dispatch failure leaves
	// the record pending or processing; the client polls for the outcome either way.
	if _, dispatchErr := h.dispatcher.Dispatch(r.Context(), req.ID); dispatchErr != nil {
		log.Printf("level=error component=api endpoint=create_payout msg=\"dispatch failed after create\" request_id=%s err=%v", req.ID, dispatchErr)
	}
	if current, fetchErr := h.service.GetPayoutRequest(r.Context(), userID, req.ID); fetchErr == nil {
		req = current
	}

	log.Printf("level=info component=api endpoint=create_payout outcome=accepted user_id=%s request_id=%s amount=%d fee=%d",
		userID, req.ID, req.Amount, req.Fee)
	h.writeJSON(w, http.StatusCreated, buildPayoutResponse(req, "Payout initiated"))
}

// GetPayoutHandler returns one payout request for its owner.
func (h *PayoutHandlers) GetPayoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}
	payoutID, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payout ID")
		return
	}

	req, err := h.service.GetPayoutRequest(r.Context(), userID, payoutID)
	if err != nil {
		if errors.Is(err, store.ErrPayoutNotFound) {
			h.writeError(w, http.StatusNotFound, "Payout not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_payout user_id=%s payout_id=%s err=%v", userID, payoutID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, buildPayoutResponse(req, ""))
}

// ListPayoutsHandler returns the caller's payout history, newest first.
// Supports ?status=, ?limit= and ?offset= query parameters.
func (h *PayoutHandlers) ListPayoutsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	opts := domain.PayoutListOptions{}
	opts.Status = r.URL.Query().Get("status")
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			opts.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			opts.Offset = offset
		}
	}

	payouts, err := h.service.ListPayoutRequests(r.Context(), userID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_payouts user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	responses := make([]payoutResponse, 0, len(payouts))
	for i := range payouts {
		responses = append(responses, buildPayoutResponse(&payouts[i], ""))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"payouts": responses, "count": len(responses)})
}

// CancelPayoutHandler cancels a payout that has not yet been dispatched.
func (h *PayoutHandlers) CancelPayoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}
	payoutID, err := uuid.Parse(chi.URLParam(r, "payoutID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payout ID")
		return
	}

	err = h.service.CancelPayoutRequest(r.Context(), userID, payoutID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPayoutNotFound):
			h.writeError(w, http.StatusNotFound, "Payout not found")
		case errors.Is(err, store.ErrAlreadyDispatched):
			h.writeError(w, http.StatusConflict, "Payout has already been dispatched and can no longer be cancelled")
		case errors.Is(err, store.ErrPayoutConflict):
			h.writeError(w, http.StatusConflict, "Payout is not in a cancellable state")
		default:
			log.Printf("level=error component=api endpoint=cancel_payout user_id=%s payout_id=%s err=%v", userID, payoutID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	req, err := h.service.GetPayoutRequest(r.Context(), userID, payoutID)
	if err != nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"payout_id": payoutID.String(), "status": domain.StatusCancelled})
		return
	}
	h.writeJSON(w, http.StatusOK, buildPayoutResponse(req, "Payout cancelled"))
}

// QuoteFeeHandler returns the fee that would be frozen for a prospective payout.
func (h *PayoutHandlers) QuoteFeeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var payload struct {
		MethodID uuid.UUID `json:"method_id"`
		Amount   int64     `json:"amount"`
		Currency string    `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	quote, err := h.service.QuoteFee(r.Context(), userID, payload.MethodID, payload.Amount, payload.Currency)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrMethodNotFound):
			h.writeError(w, http.StatusNotFound, "Payout method not found")
		default:
			log.Printf("level=error component=api endpoint=quote_fee user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

// ReconcileHandler triggers one reconciliation sweep. It sits behind the
// internal key middleware and exists for operators and the scheduler's
// out-of-process siblings.
func (h *PayoutHandlers) ReconcileHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.Run(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=reconcile err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Reconciliation sweep failed")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// writeJSON is a helper for writing JSON responses.
func (h *PayoutHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PayoutHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
