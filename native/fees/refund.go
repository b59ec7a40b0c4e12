package fees

import (
	"errors"
	"fmt"
)

var (
	ErrWindowOrder      = errors.New("fees: fee window must precede free window")
	ErrRefundBpsTooHigh = errors.New("fees: refund fee exceeds 10000 bps")
)

// RefundVerdict classifies a refund attempt by gift age.
type RefundVerdict uint8

const (
	// RefundWithFee applies inside the early window: the giver pays the
	// configured refund fee.
	RefundWithFee RefundVerdict = iota
	// RefundClosed marks the dead zone between the two windows. Refunds are
	// rejected there to stop givers from grinding partial windows.
	RefundClosed
	// RefundFree applies once the free window has fully elapsed.
	RefundFree
)

// RefundSettings defines the three refund-age zones measured in blocks since
// gift creation.
type RefundSettings struct {
	FeeWindowBlocks  uint64
	FreeWindowBlocks uint64
	FeeBps           uint32
}

// Validate enforces the window ordering and the fee bound.
func (s RefundSettings) Validate() error {
	if s.FeeWindowBlocks >= s.FreeWindowBlocks {
		return fmt.Errorf("%w: %d >= %d", ErrWindowOrder, s.FeeWindowBlocks, s.FreeWindowBlocks)
	}
	if s.FeeBps > BpsDenominator {
		return fmt.Errorf("%w: %d", ErrRefundBpsTooHigh, s.FeeBps)
	}
	return nil
}

// Decide maps the gift age onto a refund verdict. Ages strictly below the fee
// window are fee-bearing, ages strictly above the free window are free, and
// everything in between is closed.
func (s RefundSettings) Decide(ageBlocks uint64) RefundVerdict {
	switch {
	case ageBlocks < s.FeeWindowBlocks:
		return RefundWithFee
	case ageBlocks > s.FreeWindowBlocks:
		return RefundFree
	default:
		return RefundClosed
	}
}
