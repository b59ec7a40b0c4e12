package gift

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"giftledger/core/types"
	"giftledger/native/fees"
)

const (
	EventTypeGiftCreated         = "gift.created"
	EventTypeGiftClaimed         = "gift.claimed"
	EventTypeGiftRefunded        = "gift.refunded"
	EventTypeSurplusClaimed      = "gift.surplus_claimed"
	EventTypeCommissionWithdrawn = "gift.commission_withdrawn"
	EventTypeAssetAdded          = "gift.asset.added"
	EventTypeAssetRemoved        = "gift.asset.removed"
	EventTypeCommissionUpdated   = "gift.params.commission_updated"
	EventTypeRefundUpdated       = "gift.params.refund_updated"
	EventTypeRewardAssetUpdated  = "gift.params.reward_asset_updated"
	EventTypeTreasuryUpdated     = "gift.params.treasury_updated"
)

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newCreatedEvent(g *Gift, commissionAsset [20]byte, commission *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeGiftCreated,
		Attributes: map[string]string{
			"id":              strconv.FormatUint(g.ID, 10),
			"giver":           hexAddr(g.Giver),
			"receiver":        hexAddr(g.Receiver),
			"asset":           hexAddr(g.Asset),
			"amount":          bigAttr(g.Amount),
			"amountUSD":       bigAttr(g.AmountUSD),
			"commissionAsset": hexAddr(commissionAsset),
			"commission":      bigAttr(commission),
		},
	}
}

func newClaimedEvent(g *Gift) *types.Event {
	return &types.Event{
		Type: EventTypeGiftClaimed,
		Attributes: map[string]string{
			"id":       strconv.FormatUint(g.ID, 10),
			"receiver": hexAddr(g.Receiver),
			"asset":    hexAddr(g.Asset),
			"amount":   bigAttr(g.Amount),
		},
	}
}

func newRefundedEvent(g *Gift, fee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeGiftRefunded,
		Attributes: map[string]string{
			"id":     strconv.FormatUint(g.ID, 10),
			"giver":  hexAddr(g.Giver),
			"asset":  hexAddr(g.Asset),
			"amount": bigAttr(g.Amount),
			"fee":    bigAttr(fee),
		},
	}
}

func newSurplusClaimedEvent(caller [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSurplusClaimed,
		Attributes: map[string]string{
			"caller": hexAddr(caller),
			"amount": bigAttr(amount),
		},
	}
}

func newCommissionWithdrawnEvent(asset [20]byte, amount *big.Int, treasury [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeCommissionWithdrawn,
		Attributes: map[string]string{
			"asset":    hexAddr(asset),
			"amount":   bigAttr(amount),
			"treasury": hexAddr(treasury),
		},
	}
}

func newAssetAddedEvent(asset [20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeAssetAdded,
		Attributes: map[string]string{"asset": hexAddr(asset)},
	}
}

func newAssetRemovedEvent(asset [20]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeAssetRemoved,
		Attributes: map[string]string{"asset": hexAddr(asset)},
	}
}

func newCommissionUpdatedEvent(old, updated fees.CommissionTable, monotonic bool) *types.Event {
	attrs := map[string]string{
		"monotonicRates": strconv.FormatBool(monotonic),
	}
	for i := 0; i < fees.TierCount; i++ {
		tier := strconv.Itoa(i + 1)
		if old.Thresholds[i] != nil {
			attrs["oldThreshold"+tier] = old.Thresholds[i].String()
		}
		attrs["newThreshold"+tier] = bigAttr(updated.Thresholds[i])
		attrs["newFullBps"+tier] = strconv.FormatUint(uint64(updated.Rates[i].FullBps), 10)
		attrs["newReducedBps"+tier] = strconv.FormatUint(uint64(updated.Rates[i].ReducedBps), 10)
	}
	return &types.Event{Type: EventTypeCommissionUpdated, Attributes: attrs}
}

func newRewardAssetUpdatedEvent(old, updated [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeRewardAssetUpdated,
		Attributes: map[string]string{
			"old": hexAddr(old),
			"new": hexAddr(updated),
		},
	}
}

func newTreasuryUpdatedEvent(old, updated [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryUpdated,
		Attributes: map[string]string{
			"old": hexAddr(old),
			"new": hexAddr(updated),
		},
	}
}

func newRefundUpdatedEvent(old, updated fees.RefundSettings) *types.Event {
	return &types.Event{
		Type: EventTypeRefundUpdated,
		Attributes: map[string]string{
			"oldFeeWindowBlocks":  strconv.FormatUint(old.FeeWindowBlocks, 10),
			"oldFreeWindowBlocks": strconv.FormatUint(old.FreeWindowBlocks, 10),
			"oldFeeBps":           strconv.FormatUint(uint64(old.FeeBps), 10),
			"newFeeWindowBlocks":  strconv.FormatUint(updated.FeeWindowBlocks, 10),
			"newFreeWindowBlocks": strconv.FormatUint(updated.FreeWindowBlocks, 10),
			"newFeeBps":           strconv.FormatUint(uint64(updated.FeeBps), 10),
		},
	}
}
