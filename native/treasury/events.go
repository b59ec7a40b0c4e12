package treasury

import (
	"encoding/hex"
	"math/big"

	"giftledger/core/types"
)

const (
	// EventTypeCommissionSplit marks a completed per-asset split.
	EventTypeCommissionSplit = "treasury.commission_split"
)

func newSplitEvent(r SplitResult) *types.Event {
	return &types.Event{
		Type: EventTypeCommissionSplit,
		Attributes: map[string]string{
			"asset":     "0x" + hex.EncodeToString(r.Asset[:]),
			"recipient": "0x" + hex.EncodeToString(r.Recipient[:]),
			"delivered": bigAttr(r.Delivered),
			"minted":    bigAttr(r.Minted),
			"burned":    bigAttr(r.Burned),
		},
	}
}

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
