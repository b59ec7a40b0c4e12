package gift

import (
	"math/big"

	"giftledger/native/fees"
)

// GiftByID returns a copy of the stored gift.
func (e *Engine) GiftByID(id uint64) (*Gift, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.loadGift(id)
}

// GiftsCount returns the number of gifts ever created.
func (e *Engine) GiftsCount() uint64 {
	if e == nil || e.state == nil {
		return 0
	}
	return e.state.GiftCount()
}

// Account returns a copy of the user aggregate for addr. Unknown addresses
// yield an empty account.
func (e *Engine) Account(addr [20]byte) (*UserAccount, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	acc, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.Clone(), nil
}

// SurplusBalance returns the caller's refundable native overpayment.
func (e *Engine) SurplusBalance(addr [20]byte) (*big.Int, error) {
	acc, err := e.Account(addr)
	if err != nil {
		return nil, err
	}
	return acc.OverpaidNative, nil
}

// AllowedAssets lists the registered fungible assets in arena order. The
// native currency is implicitly allowed and not listed.
func (e *Engine) AllowedAssets() [][20]byte {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.List()
}

// IsAllowedAsset reports whether gifts may be denominated in asset.
func (e *Engine) IsAllowedAsset(asset [20]byte) bool {
	if asset == NativeAsset {
		return true
	}
	if e == nil || e.registry == nil {
		return false
	}
	return e.registry.Contains(asset)
}

// CommissionBalance returns the accumulated, not-yet-withdrawn commission
// for an asset.
func (e *Engine) CommissionBalance(asset [20]byte) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	return e.state.CommissionBalance(asset)
}

// CommissionTable returns a copy of the active tier table.
func (e *Engine) CommissionTable() fees.CommissionTable {
	return e.commission.Clone()
}

// RefundSettings returns the active refund windows.
func (e *Engine) RefundSettings() fees.RefundSettings {
	return e.refund
}

// RewardAsset returns the configured reward asset.
func (e *Engine) RewardAsset() [20]byte { return e.rewardAsset }

// Treasury returns the configured commission destination.
func (e *Engine) Treasury() [20]byte { return e.treasury }

// InstanceID returns the domain-separation identifier bound into signed
// claim authorizations.
func (e *Engine) InstanceID() [32]byte { return e.instanceID }
