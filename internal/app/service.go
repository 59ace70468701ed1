/**
 * @description
 * This file contains the core business logic for the payout-service. The
 * `Service` struct owns the synchronous surface: registering and managing
 * payout methods, creating payout requests with an atomically frozen fee,
 * cancellation, and history queries. Dispatch to the rail and asynchronous
 * settlement live in dispatcher.go, webhook.go and reconcile.go.
 *
 * @dependencies
 * - context, errors, fmt, log, strings: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/fees, internal/store: For domain models, the
 *   fee schedule and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/payout-service/internal/domain"
	"github.com/transfa/payout-service/internal/fees"
	"github.com/transfa/payout-service/internal/store"
)

var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrAmountTooLarge       = errors.New("amount exceeds the per-method ceiling")
	ErrUnsupportedCurrency  = errors.New("unsupported currency")
	ErrInvalidMethodType    = errors.New("unknown payout method type")
	ErrInvalidMethodDetails = errors.New("method details do not match the method type")
	ErrRateLimited          = errors.New("too many payout requests")
)

// methodCeilings caps the requestable amount per method type, in minor units.
// Types without an entry use defaultCeiling.
var methodCeilings = map[domain.MethodType]int64{
	domain.MethodBankDomestic:      5000000,  // 50,000.00
	domain.MethodBankInternational: 5000000,  // 50,000.00
	domain.MethodWallet:            1000000,  // 10,000.00
	domain.MethodCardExpress:       500000,   // 5,000.00
	domain.MethodCardStandard:      1000000,  // 10,000.00
	domain.MethodCashPickupA:       300000,   // 3,000.00
	domain.MethodCashPickupB:       300000,   // 3,000.00
	domain.MethodCrypto:            10000000, // 100,000.00
}

const defaultCeiling = 300000

func ceilingFor(methodType domain.MethodType) int64 {
	if ceiling, ok := methodCeilings[methodType]; ok {
		return ceiling
	}
	return defaultCeiling
}

// RateLimiter is the contract for the distributed request limiter. A nil
// limiter disables limiting.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the synchronous payout operations.
type Service struct {
	repo                store.Repository
	supportedCurrencies map[string]bool
	createLimitPerMin   int
	rateLimiter         RateLimiter
}

// NewService creates a new payout service instance. `currencies` is the set of
// accepted currency codes; an empty slice admits USD only.
func NewService(repo store.Repository, currencies []string, createLimitPerMin int) *Service {
	supported := make(map[string]bool)
	for _, c := range currencies {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			supported[c] = true
		}
	}
	if len(supported) == 0 {
		supported["USD"] = true
	}
	return &Service{
		repo:                repo,
		supportedCurrencies: supported,
		createLimitPerMin:   createLimitPerMin,
	}
}

// SetRateLimiter attaches a distributed rate limiter to payout creation.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.rateLimiter = limiter
}

// RegisterPayoutMethod validates and stores a withdrawal destination.
func (s *Service) RegisterPayoutMethod(ctx context.Context, userID uuid.UUID, payload domain.CreatePayoutMethodPayload) (*domain.PayoutMethod, error) {
	if !payload.Type.IsValid() {
		return nil, ErrInvalidMethodType
	}
	if strings.TrimSpace(payload.Label) == "" {
		return nil, fmt.Errorf("%w: label is required", ErrInvalidMethodDetails)
	}
	if err := validateMethodDetails(payload.Type, payload.Details); err != nil {
		return nil, err
	}

	method := &domain.PayoutMethod{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      payload.Type,
		Label:     strings.TrimSpace(payload.Label),
		LastFour:  maskedReference(payload.Type, payload.Details),
		IsDefault: payload.IsDefault,
		Details:   payload.Details,
		Metadata:  payload.Metadata,
	}

	if err := s.repo.CreatePayoutMethod(ctx, method); err != nil {
		return nil, fmt.Errorf("failed to store payout method: %w", err)
	}
	log.Printf("level=info component=service op=register_method user_id=%s method_id=%s type=%s", userID, method.ID, method.Type)
	return method, nil
}

// ListPayoutMethods returns the user's saved destinations.
func (s *Service) ListPayoutMethods(ctx context.Context, userID uuid.UUID) ([]domain.PayoutMethod, error) {
	return s.repo.ListPayoutMethods(ctx, userID)
}

// SetDefaultPayoutMethod moves the per-user default flag.
func (s *Service) SetDefaultPayoutMethod(ctx context.Context, userID uuid.UUID, methodID uuid.UUID) error {
	return s.repo.SetDefaultPayoutMethod(ctx, userID, methodID)
}

// DeletePayoutMethod soft-deletes a destination. Completed payout requests
// that referenced it keep their frozen method type and label.
func (s *Service) DeletePayoutMethod(ctx context.Context, userID uuid.UUID, methodID uuid.UUID) error {
	return s.repo.SoftDeletePayoutMethod(ctx, methodID, userID)
}

// QuoteFee computes the fee estimate for the given amount and method, using
// the same resolver that freezes fees at creation.
func (s *Service) QuoteFee(ctx context.Context, userID uuid.UUID, methodID uuid.UUID, amount int64, currency string) (*domain.FeeQuote, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	method, err := s.repo.FindPayoutMethodByID(ctx, methodID, userID)
	if err != nil {
		return nil, err
	}
	if amount > ceilingFor(method.Type) {
		return nil, ErrAmountTooLarge
	}
	fee := fees.Resolve(amount, method.Type)
	return &domain.FeeQuote{
		MethodType: method.Type,
		Amount:     amount,
		Fee:        fee,
		NetAmount:  amount - fee,
		Currency:   normalizeCurrency(currency),
	}, nil
}

// CreatePayoutRequest validates the payload, freezes the fee from the schedule
// in effect right now, and inserts the pending record. Validation failures
// create no state. The method is re-validated inside the same database
// transaction as the insert, so a concurrent method deletion cannot race the
// fee freeze.
func (s *Service) CreatePayoutRequest(ctx context.Context, userID uuid.UUID, payload domain.CreatePayoutRequestPayload) (*domain.PayoutRequest, error) {
	if payload.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	currency := normalizeCurrency(payload.Currency)
	if !s.supportedCurrencies[currency] {
		return nil, ErrUnsupportedCurrency
	}

	if s.rateLimiter != nil && s.createLimitPerMin > 0 {
		count, _, err := s.rateLimiter.ConsumeRateLimit(ctx, "payout_create", userID.String(), s.createLimitPerMin, time.Minute)
		if err != nil {
			log.Printf("level=warn component=service op=create_payout msg=\"rate limiter unavailable; allowing request\" user_id=%s err=%v", userID, err)
		} else if count > s.createLimitPerMin {
			return nil, ErrRateLimited
		}
	}

	method, err := s.repo.FindPayoutMethodByID(ctx, payload.MethodID, userID)
	if err != nil {
		return nil, err
	}

	if payload.Amount > ceilingFor(method.Type) {
		return nil, ErrAmountTooLarge
	}

	fee := fees.Resolve(payload.Amount, method.Type)
	methodID := method.ID
	req := &domain.PayoutRequest{
		ID:            uuid.New(),
		UserID:        userID,
		MethodID:      &methodID,
		MethodType:    method.Type,
		MethodLabel:   method.Label,
		Amount:        payload.Amount,
		Currency:      currency,
		Fee:           fee,
		NetAmount:     payload.Amount - fee,
		Status:        domain.StatusPending,
		Reference:     payload.Reference,
		Note:          payload.Note,
		DeliverySpeed: payload.DeliverySpeed,
	}

	if err := s.repo.CreatePayoutRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create payout request: %w", err)
	}

	log.Printf("level=info component=service op=create_payout user_id=%s request_id=%s method_type=%s amount=%d fee=%d net=%d",
		userID, req.ID, req.MethodType, req.Amount, req.Fee, req.NetAmount)
	return req, nil
}

// GetPayoutRequest fetches one request, scoped to its owner.
func (s *Service) GetPayoutRequest(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) (*domain.PayoutRequest, error) {
	req, err := s.repo.FindPayoutRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, store.ErrPayoutNotFound
	}
	return req, nil
}

// ListPayoutRequests returns the user's payout history, newest first.
func (s *Service) ListPayoutRequests(ctx context.Context, userID uuid.UUID, opts domain.PayoutListOptions) ([]domain.PayoutRequest, error) {
	return s.repo.ListPayoutRequests(ctx, userID, opts)
}

// CancelPayoutRequest cancels a pending request. Once a dispatch attempt has
// been recorded the cancellation is rejected and the caller must await the
// terminal outcome.
func (s *Service) CancelPayoutRequest(ctx context.Context, userID uuid.UUID, requestID uuid.UUID) error {
	err := s.repo.CancelPayoutRequest(ctx, requestID, userID)
	if err == nil {
		log.Printf("level=info component=service op=cancel_payout user_id=%s request_id=%s", userID, requestID)
	}
	return err
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// validateMethodDetails enforces that exactly the detail struct matching the
// method type is populated, with its required fields present.
func validateMethodDetails(methodType domain.MethodType, details domain.MethodDetails) error {
	populated := 0
	if details.Bank != nil {
		populated++
	}
	if details.Wallet != nil {
		populated++
	}
	if details.Card != nil {
		populated++
	}
	if details.CashPickup != nil {
		populated++
	}
	if details.Crypto != nil {
		populated++
	}
	if populated != 1 {
		return fmt.Errorf("%w: exactly one detail block is required", ErrInvalidMethodDetails)
	}

	switch methodType {
	case domain.MethodBankDomestic:
		if details.Bank == nil || details.Bank.AccountNumber == "" || details.Bank.RoutingNumber == "" {
			return fmt.Errorf("%w: domestic bank transfers need an account and routing number", ErrInvalidMethodDetails)
		}
	case domain.MethodBankInternational:
		if details.Bank == nil || (details.Bank.IBAN == "" && details.Bank.SwiftCode == "") {
			return fmt.Errorf("%w: international bank transfers need an IBAN or SWIFT code", ErrInvalidMethodDetails)
		}
	case domain.MethodWallet:
		if details.Wallet == nil || details.Wallet.Provider == "" || details.Wallet.Handle == "" {
			return fmt.Errorf("%w: wallet transfers need a provider and handle", ErrInvalidMethodDetails)
		}
	case domain.MethodCardExpress, domain.MethodCardStandard:
		if details.Card == nil || details.Card.CardToken == "" {
			return fmt.Errorf("%w: card payouts need a card token", ErrInvalidMethodDetails)
		}
	case domain.MethodCashPickupA, domain.MethodCashPickupB:
		if details.CashPickup == nil || details.CashPickup.RecipientName == "" || details.CashPickup.Country == "" {
			return fmt.Errorf("%w: cash pickup needs a recipient name and country", ErrInvalidMethodDetails)
		}
	case domain.MethodCrypto:
		if details.Crypto == nil || details.Crypto.Address == "" || details.Crypto.Network == "" {
			return fmt.Errorf("%w: crypto payouts need an address and network", ErrInvalidMethodDetails)
		}
	}
	return nil
}

// maskedReference derives the stored last-4 display reference for a method.
func maskedReference(methodType domain.MethodType, details domain.MethodDetails) *string {
	var source string
	switch {
	case details.Bank != nil && details.Bank.AccountNumber != "":
		source = details.Bank.AccountNumber
	case details.Bank != nil && details.Bank.IBAN != "":
		source = details.Bank.IBAN
	case details.Card != nil:
		source = details.Card.CardToken
	case details.Crypto != nil:
		source = details.Crypto.Address
	case details.Wallet != nil:
		source = details.Wallet.Handle
	}
	if len(source) < 4 {
		return nil
	}
	masked := source[len(source)-4:]
	return &masked
}
