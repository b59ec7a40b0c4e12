package fees

import (
	"errors"
	"math/big"
	"testing"
)

func usd(v int64) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return new(big.Int).Mul(big.NewInt(v), scale)
}

func testTable() CommissionTable {
	return CommissionTable{
		Thresholds: [TierCount]*big.Int{usd(15), usd(250), usd(1000), usd(10000)},
		Rates: [TierCount]RatePair{
			{FullBps: 125, ReducedBps: 100},
			{FullBps: 100, ReducedBps: 75},
			{FullBps: 75, ReducedBps: 50},
			{FullBps: 50, ReducedBps: 25},
		},
	}
}

func TestValidateAcceptsMonotonicTable(t *testing.T) {
	monotonic, err := testTable().Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !monotonic {
		t.Fatalf("expected monotonic table")
	}
}

func TestValidateFlagsNonMonotonicRates(t *testing.T) {
	table := testTable()
	table.Rates[2].FullBps = 200
	monotonic, err := table.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if monotonic {
		t.Fatalf("expected non-monotonic flag")
	}
}

func TestValidateRejectsThresholdOrder(t *testing.T) {
	table := testTable()
	table.Thresholds[2] = usd(250)
	if _, err := table.Validate(); !errors.Is(err, ErrThresholdOrder) {
		t.Fatalf("expected threshold order error, got %v", err)
	}
}

func TestValidateRejectsNilThreshold(t *testing.T) {
	table := testTable()
	table.Thresholds[3] = nil
	if _, err := table.Validate(); !errors.Is(err, ErrNilThreshold) {
		t.Fatalf("expected nil threshold error, got %v", err)
	}
}

func TestValidateRejectsRateAboveDenominator(t *testing.T) {
	table := testTable()
	table.Rates[0].ReducedBps = BpsDenominator + 1
	if _, err := table.Validate(); !errors.Is(err, ErrRateOutOfRange) {
		t.Fatalf("expected rate range error, got %v", err)
	}
}

func TestRateForSelectsHighestSatisfiedTier(t *testing.T) {
	table := testTable()
	cases := []struct {
		value    *big.Int
		wantFull uint32
	}{
		{usd(15), 125},
		{usd(249), 125},
		{usd(250), 100},
		{usd(1000), 75},
		{usd(10000), 50},
		{usd(5000000), 50},
	}
	for _, tc := range cases {
		rates, err := table.RateFor(tc.value)
		if err != nil {
			t.Fatalf("rate for %s: %v", tc.value, err)
		}
		if rates.FullBps != tc.wantFull {
			t.Fatalf("value %s: got %d bps, want %d", tc.value, rates.FullBps, tc.wantFull)
		}
	}
}

func TestRateForRejectsBelowEntryTier(t *testing.T) {
	table := testTable()
	below := new(big.Int).Sub(usd(15), big.NewInt(1))
	if _, err := table.RateFor(below); !errors.Is(err, ErrGiftTooSmall) {
		t.Fatalf("expected gift too small, got %v", err)
	}
	if _, err := table.RateFor(nil); !errors.Is(err, ErrGiftTooSmall) {
		t.Fatalf("expected gift too small for nil value, got %v", err)
	}
}

func TestMinimumGiftPrice(t *testing.T) {
	table := testTable()
	if got := table.MinimumGiftPrice(); got.Cmp(usd(15)) != 0 {
		t.Fatalf("minimum price: got %s", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	table := testTable()
	clone := table.Clone()
	clone.Thresholds[0].SetInt64(1)
	if table.Thresholds[0].Cmp(usd(15)) != 0 {
		t.Fatalf("clone aliases thresholds")
	}
}

func TestApplyBpsTruncates(t *testing.T) {
	// 1001 * 125 / 10000 = 12.5125 -> 12
	if got := ApplyBps(big.NewInt(1001), 125); got.Cmp(big.NewInt(12)) != 0 {
		t.Fatalf("truncation: got %s", got)
	}
	if got := ApplyBps(big.NewInt(1000), 0); got.Sign() != 0 {
		t.Fatalf("zero bps: got %s", got)
	}
	if got := ApplyBps(nil, 125); got.Sign() != 0 {
		t.Fatalf("nil amount: got %s", got)
	}
	if got := ApplyBps(big.NewInt(1000), BpsDenominator); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("full share: got %s", got)
	}
}
