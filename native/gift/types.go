package gift

import (
	"math/big"
)

// NativeAsset is the sentinel identifier for the chain's native currency.
// It matches the conventional all-0xEE pseudo address used by the deployment
// environment.
var NativeAsset = [20]byte{
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
	0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee, 0xee,
}

// GiftStatus tracks the one-way lifecycle of a gift. Created is the only
// non-terminal state.
type GiftStatus uint8

const (
	GiftCreated GiftStatus = iota
	GiftClaimed
	GiftRefunded
)

// Valid reports whether the status value is within the supported range.
func (s GiftStatus) Valid() bool {
	switch s {
	case GiftCreated, GiftClaimed, GiftRefunded:
		return true
	default:
		return false
	}
}

func (s GiftStatus) String() string {
	switch s {
	case GiftCreated:
		return "created"
	case GiftClaimed:
		return "claimed"
	case GiftRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Gift captures a single claimable transfer. IDs are dense, assigned in
// creation order, and gifts are never deleted. AmountUSD freezes the
// valuation at creation time.
type Gift struct {
	ID             uint64     `json:"id"`
	Giver          [20]byte   `json:"giver"`
	Receiver       [20]byte   `json:"receiver"`
	Asset          [20]byte   `json:"asset"`
	Amount         *big.Int   `json:"amount"`
	AmountUSD      *big.Int   `json:"amountInUSD"`
	CreatedAtBlock uint64     `json:"createdAtBlock"`
	CreatedAtTime  int64      `json:"createdAtTime"`
	Status         GiftStatus `json:"status"`
}

// Clone returns a deep copy so callers can mutate the result without
// touching the stored instance.
func (g *Gift) Clone() *Gift {
	if g == nil {
		return nil
	}
	clone := *g
	clone.Amount = cloneBigInt(g.Amount)
	clone.AmountUSD = cloneBigInt(g.AmountUSD)
	return &clone
}

// UserAccount aggregates per-address gifting history. Accounts are created
// lazily on first interaction and never destroyed.
type UserAccount struct {
	GivenGifts             []uint64 `json:"givenGifts"`
	ReceivedGifts          []uint64 `json:"receivedGifts"`
	TotalTurnoverUSD       *big.Int `json:"totalTurnoverUSD"`
	TotalCommissionPaidUSD *big.Int `json:"totalCommissionPaidUSD"`
	OverpaidNative         *big.Int `json:"overpaidNative"`
}

// Clone returns a deep copy of the account.
func (a *UserAccount) Clone() *UserAccount {
	if a == nil {
		return nil
	}
	clone := &UserAccount{
		GivenGifts:             append([]uint64(nil), a.GivenGifts...),
		ReceivedGifts:          append([]uint64(nil), a.ReceivedGifts...),
		TotalTurnoverUSD:       cloneBigInt(a.TotalTurnoverUSD),
		TotalCommissionPaidUSD: cloneBigInt(a.TotalCommissionPaidUSD),
		OverpaidNative:         cloneBigInt(a.OverpaidNative),
	}
	return clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func ensureAccount(acc *UserAccount) *UserAccount {
	if acc == nil {
		acc = &UserAccount{}
	}
	if acc.TotalTurnoverUSD == nil {
		acc.TotalTurnoverUSD = big.NewInt(0)
	}
	if acc.TotalCommissionPaidUSD == nil {
		acc.TotalCommissionPaidUSD = big.NewInt(0)
	}
	if acc.OverpaidNative == nil {
		acc.OverpaidNative = big.NewInt(0)
	}
	return acc
}

// subClamped subtracts b from a in place, flooring at zero so refund
// adjustments can never drive an aggregate negative.
func subClamped(a, b *big.Int) *big.Int {
	out := new(big.Int).Sub(a, b)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}
