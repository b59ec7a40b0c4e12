package treasury

import (
	"errors"
	"fmt"
	"math/big"

	"giftledger/core/events"
	"giftledger/core/types"
	"giftledger/native/fees"
	"giftledger/native/gift"
)

var (
	ErrNilLedger      = errors.New("treasury: ledger not configured")
	ErrNilBank        = errors.New("treasury: bank not configured")
	ErrNilRouter      = errors.New("treasury: swap router not configured")
	ErrLengthMismatch = errors.New("treasury: array length mismatch")
	ErrZeroAmount     = errors.New("treasury: amount must be positive")
	ErrZeroBalance    = errors.New("treasury: nothing to split for asset")
	ErrAmountTooLow   = errors.New("treasury: swap output below minimum")
	ErrSplitBounds    = errors.New("treasury: mint and burn shares exceed 100%")
	ErrZeroRecipient  = errors.New("treasury: zero recipient")
)

// Ledger is the commission source the splitter drains. The gift engine
// satisfies it.
type Ledger interface {
	WithdrawCommission(assets [][20]byte, amounts []*big.Int) error
	CommissionBalance(asset [20]byte) *big.Int
}

// Bank is the treasury's view of asset custody: balances it owns, transfers
// out of its holdings, native wrapping and reward-asset supply changes.
type Bank interface {
	BalanceOf(asset, owner [20]byte) (*big.Int, error)
	Transfer(asset, to [20]byte, amount *big.Int) error
	WrapNative(amount *big.Int) error
	Mint(to [20]byte, amount *big.Int) error
	Burn(amount *big.Int) error
}

// SwapPath describes the two-hop exact-input route from a held asset to the
// reward asset.
type SwapPath struct {
	AssetIn      [20]byte
	FeeTierIn    uint32
	Intermediate [20]byte
	FeeTierOut   uint32
	AssetOut     [20]byte
}

// SwapRouter executes an exact-input swap along the supplied path and
// returns the output amount. Implementations enforce minAmountOut.
type SwapRouter interface {
	ExactInput(path SwapPath, amountIn, minAmountOut *big.Int) (*big.Int, error)
}

// Valuer prices assets in 18-decimal USD; the splitter uses it to compute
// the minimum acceptable swap output.
type Valuer interface {
	ValueInUSD(asset [20]byte, amount *big.Int) (*big.Int, error)
}

// SplitSettings carries the mint and burn shares in basis points. The
// remainder of every split passes through to the recipient.
type SplitSettings struct {
	MintBps uint32
	BurnBps uint32
}

// Validate checks the shares stay within one whole.
func (s SplitSettings) Validate() error {
	if s.MintBps > fees.BpsDenominator || s.BurnBps > fees.BpsDenominator {
		return fmt.Errorf("%w: mint %d, burn %d", ErrSplitBounds, s.MintBps, s.BurnBps)
	}
	if s.MintBps+s.BurnBps > fees.BpsDenominator {
		return fmt.Errorf("%w: mint %d + burn %d", ErrSplitBounds, s.MintBps, s.BurnBps)
	}
	return nil
}

// SwapSettings carries the routing configuration for commission conversion.
type SwapSettings struct {
	WrappedNative [20]byte
	Intermediate  [20]byte
	FeeTierIn     uint32
	FeeTierOut    uint32
	SlippageBps   uint32
}

// Validate checks the slippage guard bound and the wrapped-native binding.
func (s SwapSettings) Validate() error {
	if s.WrappedNative == ([20]byte{}) || s.Intermediate == ([20]byte{}) {
		return fmt.Errorf("treasury: swap settings require wrapped native and intermediate assets")
	}
	if s.SlippageBps > fees.BpsDenominator {
		return fmt.Errorf("treasury: slippage %d exceeds 10000 bps", s.SlippageBps)
	}
	return nil
}

// SplitResult reports the outcome of one asset's split.
type SplitResult struct {
	Asset     [20]byte
	Recipient [20]byte
	Delivered *big.Int
	Minted    *big.Int
	Burned    *big.Int
}

// Splitter drains ledger commission pools into treasury custody, normalizes
// every held asset into the reward asset and distributes the proceeds
// between minting, burning and pass-through.
type Splitter struct {
	addr        [20]byte
	ledger      Ledger
	bank        Bank
	router      SwapRouter
	valuer      Valuer
	emitter     events.Emitter
	rewardAsset [20]byte
	split       SplitSettings
	swap        SwapSettings
}

// NewSplitter creates a splitter operating custody owned by addr.
func NewSplitter(addr, rewardAsset [20]byte) *Splitter {
	return &Splitter{
		addr:        addr,
		rewardAsset: rewardAsset,
		emitter:     events.NoopEmitter{},
	}
}

// SetLedger wires the commission source.
func (s *Splitter) SetLedger(l Ledger) { s.ledger = l }

// SetBank wires the custody view.
func (s *Splitter) SetBank(b Bank) { s.bank = b }

// SetRouter wires the market swap venue.
func (s *Splitter) SetRouter(r SwapRouter) { s.router = r }

// SetValuer wires the USD price source used for the slippage guard.
func (s *Splitter) SetValuer(v Valuer) { s.valuer = v }

// SetEmitter configures the event emitter; nil resets to no-op.
func (s *Splitter) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// SetSplitSettings validates and installs the mint/burn shares.
func (s *Splitter) SetSplitSettings(settings SplitSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.split = settings
	return nil
}

// SetSwapSettings validates and installs the routing configuration.
func (s *Splitter) SetSwapSettings(settings SwapSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.swap = settings
	return nil
}

// SplitSettings returns the active mint/burn shares.
func (s *Splitter) SplitSettings() SplitSettings { return s.split }

// SwapSettings returns the active routing configuration.
func (s *Splitter) SwapSettings() SwapSettings { return s.swap }

// PullCommission drains the named ledger commission pools into treasury
// custody.
func (s *Splitter) PullCommission(assets [][20]byte, amounts []*big.Int) error {
	if s.ledger == nil {
		return ErrNilLedger
	}
	if len(assets) != len(amounts) {
		return fmt.Errorf("%w: %d assets, %d amounts", ErrLengthMismatch, len(assets), len(amounts))
	}
	for i, amount := range amounts {
		if amount == nil || amount.Sign() <= 0 {
			return fmt.Errorf("%w: index %d", ErrZeroAmount, i)
		}
	}
	return s.ledger.WithdrawCommission(assets, amounts)
}

// SplitEarnedCommission converts each held asset into the reward asset and
// splits the proceeds per the configured shares. Native currency is wrapped
// first; the reward asset itself skips the market swap.
func (s *Splitter) SplitEarnedCommission(assets [][20]byte, leftoverRecipient [20]byte) ([]SplitResult, error) {
	if s.bank == nil {
		return nil, ErrNilBank
	}
	if leftoverRecipient == ([20]byte{}) {
		return nil, ErrZeroRecipient
	}
	results := make([]SplitResult, 0, len(assets))
	for _, asset := range assets {
		result, err := s.splitAsset(asset, leftoverRecipient)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *Splitter) splitAsset(asset, recipient [20]byte) (SplitResult, error) {
	working := asset
	if asset == gift.NativeAsset {
		nativeBalance, err := s.bank.BalanceOf(gift.NativeAsset, s.addr)
		if err != nil {
			return SplitResult{}, err
		}
		if nativeBalance.Sign() > 0 {
			if err := s.bank.WrapNative(nativeBalance); err != nil {
				return SplitResult{}, err
			}
		}
		working = s.swap.WrappedNative
	}

	balance, err := s.bank.BalanceOf(working, s.addr)
	if err != nil {
		return SplitResult{}, err
	}
	if balance.Sign() <= 0 {
		return SplitResult{}, fmt.Errorf("%w: %x", ErrZeroBalance, asset)
	}

	received := balance
	if working != s.rewardAsset {
		if s.router == nil {
			return SplitResult{}, ErrNilRouter
		}
		minOut := s.minimumOut(working, balance)
		path := SwapPath{
			AssetIn:      working,
			FeeTierIn:    s.swap.FeeTierIn,
			Intermediate: s.swap.Intermediate,
			FeeTierOut:   s.swap.FeeTierOut,
			AssetOut:     s.rewardAsset,
		}
		received, err = s.router.ExactInput(path, balance, minOut)
		if err != nil {
			return SplitResult{}, err
		}
		if received.Cmp(minOut) < 0 {
			return SplitResult{}, fmt.Errorf("%w: received %s, minimum %s", ErrAmountTooLow, received, minOut)
		}
	}

	// The mint share is issued on top of the held proceeds; only the burn
	// share is withheld from the outbound transfer. At a 100% mint share the
	// recipient receives twice the swapped amount.
	minted := shareOf(received, s.split.MintBps)
	burned := shareOf(received, s.split.BurnBps)
	forwarded := new(big.Int).Sub(received, burned)

	if minted.Sign() > 0 {
		if err := s.bank.Mint(recipient, minted); err != nil {
			return SplitResult{}, err
		}
	}
	if burned.Sign() > 0 {
		if err := s.bank.Burn(burned); err != nil {
			return SplitResult{}, err
		}
	}
	if forwarded.Sign() > 0 {
		if err := s.bank.Transfer(s.rewardAsset, recipient, forwarded); err != nil {
			return SplitResult{}, err
		}
	}

	result := SplitResult{
		Asset:     asset,
		Recipient: recipient,
		Delivered: new(big.Int).Add(forwarded, minted),
		Minted:    minted,
		Burned:    burned,
	}
	s.emit(newSplitEvent(result))
	return result, nil
}

// minimumOut derives the slippage-guarded minimum reward output from the
// oracle valuation of the input. Without a valuer the guard is disabled.
func (s *Splitter) minimumOut(assetIn [20]byte, amountIn *big.Int) *big.Int {
	if s.valuer == nil {
		return big.NewInt(0)
	}
	usdIn, err := s.valuer.ValueInUSD(assetIn, amountIn)
	if err != nil || usdIn.Sign() <= 0 {
		return big.NewInt(0)
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	rewardUnitUSD, err := s.valuer.ValueInUSD(s.rewardAsset, unit)
	if err != nil || rewardUnitUSD.Sign() <= 0 {
		return big.NewInt(0)
	}
	expected := new(big.Int).Mul(usdIn, unit)
	expected.Div(expected, rewardUnitUSD)
	keepBps := uint32(fees.BpsDenominator) - s.swap.SlippageBps
	return fees.ApplyBps(expected, keepBps)
}

func shareOf(total *big.Int, bps uint32) *big.Int {
	return fees.ApplyBps(total, bps)
}

type treasuryEvent struct {
	evt *types.Event
}

func (e treasuryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e treasuryEvent) Event() *types.Event { return e.evt }

func (s *Splitter) emit(event *types.Event) {
	if s == nil || s.emitter == nil || event == nil {
		return
	}
	s.emitter.Emit(treasuryEvent{evt: event})
}
