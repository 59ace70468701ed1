/**
 * @description
 * This file contains the HTTP handlers for payout method management: the saved
 * withdrawal destinations a user can dispatch payouts to. Method registration
 * validates the destination shape up front so a payout request can trust that
 * its referenced method is well formed.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/app"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/store"
)

// CreatePayoutMethodHandler registers a new withdrawal destination.
func (h *PayoutHandlers) CreatePayoutMethodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.CreatePayoutMethodPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("level=warn component=api endpoint=create_method outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	method, err := h.service.RegisterPayoutMethod(r.Context(), userID, payload)
	if err != nil {
		if errors.Is(err, app.ErrInvalidMethodType) || errors.Is(err, app.ErrInvalidMethodDetails) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=create_method user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusCreated, method)
}

// ListPayoutMethodsHandler returns the caller's saved destinations.
func (h *PayoutHandlers) ListPayoutMethodsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	methods, err := h.service.ListPayoutMethods(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_methods user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"payout_methods": methods, "count": len(methods)})
}

// SetDefaultPayoutMethodHandler moves the caller's default flag to the given method.
func (h *PayoutHandlers) SetDefaultPayoutMethodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}
	methodID, err := uuid.Parse(chi.URLParam(r, "methodID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid method ID")
		return
	}

	if err := h.service.SetDefaultPayoutMethod(r.Context(), userID, methodID); err != nil {
		if errors.Is(err, store.ErrMethodNotFound) {
			h.writeError(w, http.StatusNotFound, "Payout method not found")
			return
		}
		log.Printf("level=error component=api endpoint=set_default_method user_id=%s method_id=%s err=%v", userID, methodID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeletePayoutMethodHandler soft-deletes a destination. History that
// referenced it keeps its frozen method type and label.
func (h *PayoutHandlers) DeletePayoutMethodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}
	methodID, err := uuid.Parse(chi.URLParam(r, "methodID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid method ID")
		return
	}

	if err := h.service.DeletePayoutMethod(r.Context(), userID, methodID); err != nil {
		if errors.Is(err, store.ErrMethodNotFound) {
			h.writeError(w, http.StatusNotFound, "Payout method not found")
			return
		}
		log.Printf("level=error component=api endpoint=delete_method user_id=%s method_id=%s err=%v", userID, methodID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
