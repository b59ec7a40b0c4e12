package fees

import (
	"errors"
	"fmt"
	"math/big"
)

// TierCount is the number of USD commission bands supported by the ledger.
const TierCount = 4

// BpsDenominator is the basis-point scale used for every rate in the module.
const BpsDenominator = 10_000

var (
	// ErrGiftTooSmall signals that a gift's USD value is below the entry
	// tier threshold.
	ErrGiftTooSmall = errors.New("fees: gift value below minimum tier")

	ErrThresholdOrder = errors.New("fees: thresholds must be strictly increasing")
	ErrRateOutOfRange = errors.New("fees: rate exceeds 10000 bps")
	ErrNilThreshold   = errors.New("fees: nil threshold")
)

// RatePair carries the two commission rates attached to a tier. Full applies
// when commission is paid in the gift asset, Reduced when it is paid in the
// reward asset.
type RatePair struct {
	FullBps    uint32
	ReducedBps uint32
}

// CommissionTable holds the four USD thresholds (18-decimal fixed point,
// strictly increasing) and the rate pair for each band. Rates are expected to
// be non-increasing as value grows; that expectation is an operator
// responsibility and deliberately not enforced at lookup time.
type CommissionTable struct {
	Thresholds [TierCount]*big.Int
	Rates      [TierCount]RatePair
}

// Validate checks the hard invariants of the table: non-nil, strictly
// increasing thresholds and every rate within [0, 10000] bps. The returned
// monotonic flag reports whether rates are non-increasing across tiers;
// callers surface a warning for non-monotonic tables but must not reject
// them.
func (t CommissionTable) Validate() (monotonic bool, err error) {
	for i := 0; i < TierCount; i++ {
		if t.Thresholds[i] == nil {
			return false, fmt.Errorf("%w: tier %d", ErrNilThreshold, i+1)
		}
		if i > 0 && t.Thresholds[i].Cmp(t.Thresholds[i-1]) <= 0 {
			return false, fmt.Errorf("%w: tier %d", ErrThresholdOrder, i+1)
		}
		if t.Rates[i].FullBps > BpsDenominator || t.Rates[i].ReducedBps > BpsDenominator {
			return false, fmt.Errorf("%w: tier %d", ErrRateOutOfRange, i+1)
		}
	}
	monotonic = true
	for i := 1; i < TierCount; i++ {
		if t.Rates[i].FullBps > t.Rates[i-1].FullBps || t.Rates[i].ReducedBps > t.Rates[i-1].ReducedBps {
			monotonic = false
			break
		}
	}
	return monotonic, nil
}

// Clone returns a deep copy so stored tables cannot be mutated through a
// retained reference.
func (t CommissionTable) Clone() CommissionTable {
	clone := CommissionTable{Rates: t.Rates}
	for i, threshold := range t.Thresholds {
		if threshold != nil {
			clone.Thresholds[i] = new(big.Int).Set(threshold)
		}
	}
	return clone
}

// RateFor resolves the rate pair for the supplied USD value. The highest tier
// whose threshold is satisfied wins, so tier 4 carries the lowest rates.
// Values below the first threshold fail with ErrGiftTooSmall.
func (t CommissionTable) RateFor(usdValue *big.Int) (RatePair, error) {
	if usdValue == nil {
		return RatePair{}, fmt.Errorf("%w: no value", ErrGiftTooSmall)
	}
	for i := TierCount - 1; i >= 0; i-- {
		if t.Thresholds[i] == nil {
			return RatePair{}, fmt.Errorf("%w: tier %d", ErrNilThreshold, i+1)
		}
		if usdValue.Cmp(t.Thresholds[i]) >= 0 {
			return t.Rates[i], nil
		}
	}
	return RatePair{}, fmt.Errorf("%w: value %s below %s", ErrGiftTooSmall, usdValue, t.Thresholds[0])
}

// MinimumGiftPrice returns the entry-tier threshold, i.e. the smallest USD
// value the ledger accepts.
func (t CommissionTable) MinimumGiftPrice() *big.Int {
	if t.Thresholds[0] == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(t.Thresholds[0])
}

// ApplyBps computes amount * bps / 10000 with truncating integer division, so
// commission always rounds down in favour of the payer.
func ApplyBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return fee.Div(fee, big.NewInt(BpsDenominator))
}
