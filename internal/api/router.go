/**
 * @description
 * This file sets up the HTTP router for the payout-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PayoutRoutes creates and returns a new router for the payout service.
func PayoutRoutes(h *PayoutHandlers, webhookHandler *RailWebhookHandler, jwksURL string, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Rail webhooks authenticate via HMAC signature, not JWT.
	r.Method(http.MethodPost, "/webhooks/rail", webhookHandler)

	// Operator and service-to-service endpoints.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))
		r.Post("/internal/reconcile", h.ReconcileHandler)
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwksURL))

		// Payout lifecycle endpoints
		r.Post("/payouts", h.CreatePayoutHandler)
		r.Get("/payouts", h.ListPayoutsHandler)
		r.Get("/payouts/{payoutID}", h.GetPayoutHandler)
		r.Post("/payouts/{payoutID}/cancel", h.CancelPayoutHandler)
		r.Post("/payouts/quote", h.QuoteFeeHandler)

		// Payout method management endpoints
		r.Post("/payout-methods", h.CreatePayoutMethodHandler)
		r.Get("/payout-methods", h.ListPayoutMethodsHandler)
		r.Put("/payout-methods/{methodID}/default", h.SetDefaultPayoutMethodHandler)
		r.Delete("/payout-methods/{methodID}", h.DeletePayoutMethodHandler)
	})

	return r
}
