package oracle

import (
	"bytes"
	"math/big"

	"github.com/holiman/uint256"
)

// MaxTick bounds the tick domain of the sqrt ratio computation. Ticks beyond
// it would overflow the Q64.96 sqrt price representation.
const MaxTick = 887272

// tickFactors are the precomputed Q128.128 multipliers for each bit of the
// tick magnitude, i.e. factor[i] = floor(2^128 / 1.0001^(2^i / 2)).
var tickFactors = [20]string{
	"0xfffcb933bd6fad37aa2d162d1a594001",
	"0xfff97272373d413259a46990580e213a",
	"0xfff2e50f5f656932ef12357cf3c7fdcc",
	"0xffe5caca7e10e4e61c3624eaa0941cd0",
	"0xffcb9843d60f6159c9db58835c926644",
	"0xff973b41fa98c081472e6896dfb254c0",
	"0xff2ea16466c96a3843ec78b326b52861",
	"0xfe5dee046a99a2a811c461f1969c3053",
	"0xfcbe86c7900a88aedcffc83b479aa3a4",
	"0xf987a7253ac413176f2b074cf7815e54",
	"0xf3392b0822b70005940c7a398e4b70f3",
	"0xe7159475a2c29b7443b29c7fa6e889d9",
	"0xd097f3bdfd2022b8845ad8f792aa5825",
	"0xa9f746462d870fdf8a65dc1f90e061e5",
	"0x70d869a156d2a1b890bb3df62baf32f7",
	"0x31be135f97d08fd981231505542fcfa6",
	"0x9aa508b5b7a84e1c677de54f3e99bc9",
	"0x5d6af8dedb81196699c329225ee604",
	"0x2216e584f5fa1ea926041bedfe98",
	"0x48a170391f7dc42444e8fa2",
}

var (
	factorTable [20]*uint256.Int
	oneX128     = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	maxUint256  = new(uint256.Int).Not(uint256.NewInt(0))
	maxUint128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	q192        = new(big.Int).Lsh(big.NewInt(1), 192)
	q128        = new(big.Int).Lsh(big.NewInt(1), 128)
)

func init() {
	for i, hex := range tickFactors {
		factorTable[i] = uint256.MustFromHex(hex)
	}
}

// SqrtRatioAtTick returns the Q64.96 sqrt price ratio for the supplied tick,
// computed by multiplying out the bit decomposition of the tick magnitude in
// Q128.128 and truncating to 96 fractional bits with round-up.
func SqrtRatioAtTick(tick int32) *big.Int {
	absTick := int64(tick)
	if absTick < 0 {
		absTick = -absTick
	}
	if absTick > MaxTick {
		absTick = MaxTick
	}

	ratio := new(uint256.Int).Set(oneX128)
	if absTick&1 != 0 {
		ratio.Set(factorTable[0])
	}
	for bit := 1; bit < len(factorTable); bit++ {
		if absTick&(1<<uint(bit)) != 0 {
			ratio.Mul(ratio, factorTable[bit])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the two representations round-trip.
	remainder := new(uint256.Int).And(ratio, uint256.NewInt(0xffffffff))
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio.ToBig()
}

// QuoteAtTick converts baseAmount of baseAsset into the equivalent amount of
// quoteAsset at the pool price implied by tick. Pool asset ordering follows
// the byte order of the two asset identifiers.
func QuoteAtTick(tick int32, baseAmount *big.Int, baseAsset, quoteAsset [20]byte) *big.Int {
	if baseAmount == nil || baseAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	sqrtRatio := SqrtRatioAtTick(tick)
	baseIsFirst := bytes.Compare(baseAsset[:], quoteAsset[:]) < 0

	// Squaring the sqrt ratio directly only fits full precision while it is
	// at most 128 bits; above that the ratio is carried at Q128 precision.
	if sqrtRatio.Cmp(maxUint128) <= 0 {
		ratioX192 := new(big.Int).Mul(sqrtRatio, sqrtRatio)
		if baseIsFirst {
			out := new(big.Int).Mul(ratioX192, baseAmount)
			return out.Div(out, q192)
		}
		out := new(big.Int).Mul(q192, baseAmount)
		return out.Div(out, ratioX192)
	}
	ratioX128 := new(big.Int).Mul(sqrtRatio, sqrtRatio)
	ratioX128.Rsh(ratioX128, 64)
	if baseIsFirst {
		out := new(big.Int).Mul(ratioX128, baseAmount)
		return out.Div(out, q128)
	}
	out := new(big.Int).Mul(q128, baseAmount)
	return out.Div(out, ratioX128)
}
