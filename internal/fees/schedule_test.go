package fees

import (
	"testing"

	"github.com/transfa/payout-service/internal/domain"
)

func TestResolve_InternationalBankTransferFloor(t *testing.T) {
	// 100.00 at 0.3% is 0.30, below the 2.00 floor.
	fee := Resolve(10000, domain.MethodBankInternational)
	if fee != 200 {
		t.Fatalf("expected fee 200, got %d", fee)
	}
}

func TestResolve_RateDominatesAboveFloor(t *testing.T) {
	// 10,000.00 at 0.3% is 30.00, above the 2.00 floor.
	fee := Resolve(1000000, domain.MethodBankInternational)
	if fee != 3000 {
		t.Fatalf("expected fee 3000, got %d", fee)
	}
}

func TestResolve_CashPickupA(t *testing.T) {
	// 50.00 at 1.8% is 0.90, below the 3.00 floor.
	if fee := Resolve(5000, domain.MethodCashPickupA); fee != 300 {
		t.Fatalf("expected fee 300, got %d", fee)
	}
	// 1,000.00 at 1.8% is 18.00.
	if fee := Resolve(100000, domain.MethodCashPickupA); fee != 1800 {
		t.Fatalf("expected fee 1800, got %d", fee)
	}
}

func TestResolve_NonPositiveAmountIsZero(t *testing.T) {
	if fee := Resolve(0, domain.MethodWallet); fee != 0 {
		t.Fatalf("expected zero fee for zero amount, got %d", fee)
	}
	if fee := Resolve(-500, domain.MethodWallet); fee != 0 {
		t.Fatalf("expected zero fee for negative amount, got %d", fee)
	}
}

func TestResolve_UnknownTypeFallsBackToDefault(t *testing.T) {
	fee := Resolve(10000, domain.MethodType("carrier_pigeon"))
	if fee != 500 {
		t.Fatalf("expected conservative default floor 500, got %d", fee)
	}
}

func TestResolve_DeterministicAndFloorBounded(t *testing.T) {
	amounts := []int64{1, 99, 100, 10000, 123456, 99999999}
	for _, methodType := range domain.MethodTypes {
		s := ScheduleFor(methodType)
		for _, amount := range amounts {
			first := Resolve(amount, methodType)
			second := Resolve(amount, methodType)
			if first != second {
				t.Fatalf("resolve not deterministic for %s/%d: %d vs %d", methodType, amount, first, second)
			}
			if first < s.FloorMinor {
				t.Fatalf("fee %d below floor %d for %s/%d", first, s.FloorMinor, methodType, amount)
			}
		}
	}
}
