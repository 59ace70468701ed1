/**
 * @description
 * Fee schedule resolver for payouts. Maps (amount, method type) to the fee
 * charged for the movement. This is a pure, deterministic, total function: it
 * performs no I/O and uses integer arithmetic only, so the authoritative
 * server-side computation and any client-side estimate agree bit-for-bit.
 */

package fees

import "github.com/transfa/payout-service/internal/domain"

// Schedule is a per-method-type fee rule of the form
// fee = max(FloorMinor, amount * RateBps / 10000).
type Schedule struct {
	FloorMinor int64 // minimum fee, in minor currency units
	RateBps    int64 // proportional rate, in basis points
}

// schedules is the fixed fee table. Amounts and floors are minor units.
var schedules = map[domain.MethodType]Schedule{
	domain.MethodBankDomestic:      {FloorMinor: 100, RateBps: 10},
	domain.MethodBankInternational: {FloorMinor: 200, RateBps: 30},
	domain.MethodWallet:            {FloorMinor: 50, RateBps: 50},
	domain.MethodCardExpress:       {FloorMinor: 150, RateBps: 100},
	domain.MethodCardStandard:      {FloorMinor: 75, RateBps: 40},
	domain.MethodCashPickupA:       {FloorMinor: 300, RateBps: 180},
	domain.MethodCashPickupB:       {FloorMinor: 350, RateBps: 200},
	domain.MethodCrypto:            {FloorMinor: 100, RateBps: 60},
}

// defaultSchedule is the conservative fallback for method types with no
// schedule entry. A payout must never be blocked solely by a schedule gap, so
// unknown types resolve to the most protective rule rather than erroring.
var defaultSchedule = Schedule{FloorMinor: 500, RateBps: 250}

// ScheduleFor returns the fee rule for the given method type, falling back to
// the conservative default when the type has no entry.
func ScheduleFor(methodType domain.MethodType) Schedule {
	if s, ok := schedules[methodType]; ok {
		return s
	}
	return defaultSchedule
}

// Resolve computes the fee for a payout of `amount` minor units via
// `methodType`. Non-positive amounts resolve to zero; callers reject them
// before request creation.
func Resolve(amount int64, methodType domain.MethodType) int64 {
	if amount <= 0 {
		return 0
	}
	s := ScheduleFor(methodType)
	fee := amount * s.RateBps / 10000
	if fee < s.FloorMinor {
		fee = s.FloorMinor
	}
	return fee
}
