package treasury

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	bankpkg "giftledger/native/bank"
	"giftledger/native/gift"
)

var oneUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type withdrawal struct {
	assets  [][20]byte
	amounts []*big.Int
}

type mockLedger struct {
	balances    map[[20]byte]*big.Int
	withdrawals []withdrawal
	err         error
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[[20]byte]*big.Int)}
}

func (m *mockLedger) WithdrawCommission(assets [][20]byte, amounts []*big.Int) error {
	if m.err != nil {
		return m.err
	}
	m.withdrawals = append(m.withdrawals, withdrawal{assets: assets, amounts: amounts})
	return nil
}

func (m *mockLedger) CommissionBalance(asset [20]byte) *big.Int {
	bal, ok := m.balances[asset]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// mockBank tracks treasury-owned holdings per asset.
type mockBank struct {
	holdings  map[[20]byte]*big.Int
	native    [20]byte
	wrapped   [20]byte
	reward    [20]byte
	minted    map[[20]byte]*big.Int
	burned    *big.Int
	transfers map[[20]byte]*big.Int
}

func newMockBank(wrapped [20]byte) *mockBank {
	return &mockBank{
		holdings:  make(map[[20]byte]*big.Int),
		native:    gift.NativeAsset,
		wrapped:   wrapped,
		reward:    testAddr(0xAB),
		minted:    make(map[[20]byte]*big.Int),
		burned:    big.NewInt(0),
		transfers: make(map[[20]byte]*big.Int),
	}
}

func (b *mockBank) setHolding(asset [20]byte, amount *big.Int) {
	b.holdings[asset] = new(big.Int).Set(amount)
}

func (b *mockBank) holding(asset [20]byte) *big.Int {
	bal, ok := b.holdings[asset]
	if !ok {
		bal = big.NewInt(0)
		b.holdings[asset] = bal
	}
	return bal
}

func (b *mockBank) BalanceOf(asset, _ [20]byte) (*big.Int, error) {
	return new(big.Int).Set(b.holding(asset)), nil
}

func (b *mockBank) Transfer(asset, to [20]byte, amount *big.Int) error {
	bal := b.holding(asset)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient %x", asset)
	}
	bal.Sub(bal, amount)
	prev, ok := b.transfers[to]
	if !ok {
		prev = big.NewInt(0)
	}
	b.transfers[to] = prev.Add(prev, amount)
	return nil
}

func (b *mockBank) WrapNative(amount *big.Int) error {
	bal := b.holding(b.native)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient native")
	}
	bal.Sub(bal, amount)
	b.holding(b.wrapped).Add(b.holding(b.wrapped), amount)
	return nil
}

func (b *mockBank) Mint(to [20]byte, amount *big.Int) error {
	prev, ok := b.minted[to]
	if !ok {
		prev = big.NewInt(0)
	}
	b.minted[to] = prev.Add(prev, amount)
	return nil
}

func (b *mockBank) Burn(amount *big.Int) error {
	bal := b.holding(b.reward)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient reward holdings")
	}
	bal.Sub(bal, amount)
	b.burned.Add(b.burned, amount)
	return nil
}

type mockRouter struct {
	out     *big.Int
	err     error
	lastIn  *big.Int
	lastMin *big.Int
	path    SwapPath
	bank    *mockBank
	reward  [20]byte
}

func (r *mockRouter) ExactInput(path SwapPath, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.path = path
	r.lastIn = new(big.Int).Set(amountIn)
	r.lastMin = new(big.Int).Set(minAmountOut)
	if r.bank != nil {
		// Swap consumes the input and credits the reward output.
		r.bank.holding(path.AssetIn).Sub(r.bank.holding(path.AssetIn), amountIn)
		r.bank.holding(r.reward).Add(r.bank.holding(r.reward), r.out)
	}
	return new(big.Int).Set(r.out), nil
}

type mockValuer struct {
	prices map[[20]byte]*big.Int
}

func newMockValuer() *mockValuer {
	return &mockValuer{prices: make(map[[20]byte]*big.Int)}
}

func (v *mockValuer) setPrice(asset [20]byte, usdPerUnit *big.Int) {
	v.prices[asset] = new(big.Int).Set(usdPerUnit)
}

func (v *mockValuer) ValueInUSD(asset [20]byte, amount *big.Int) (*big.Int, error) {
	price, ok := v.prices[asset]
	if !ok {
		return nil, fmt.Errorf("no price for %x", asset)
	}
	out := new(big.Int).Mul(amount, price)
	return out.Div(out, oneUnit), nil
}

func testSwapSettings(wrapped [20]byte) SwapSettings {
	return SwapSettings{
		WrappedNative: wrapped,
		Intermediate:  testAddr(0x20),
		FeeTierIn:     3000,
		FeeTierOut:    10000,
		SlippageBps:   100,
	}
}

func newTestSplitter(t *testing.T, bank *mockBank, split SplitSettings) *Splitter {
	t.Helper()
	s := NewSplitter(testAddr(0xCC), testAddr(0xAB))
	s.SetBank(bank)
	if err := s.SetSplitSettings(split); err != nil {
		t.Fatalf("set split settings: %v", err)
	}
	if err := s.SetSwapSettings(testSwapSettings(bank.wrapped)); err != nil {
		t.Fatalf("set swap settings: %v", err)
	}
	return s
}

func TestPullCommission(t *testing.T) {
	ledger := newMockLedger()
	bank := newMockBank(testAddr(0x10))
	s := newTestSplitter(t, bank, SplitSettings{})
	s.SetLedger(ledger)

	assets := [][20]byte{testAddr(0x01)}
	amounts := []*big.Int{big.NewInt(100)}
	if err := s.PullCommission(assets, amounts); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(ledger.withdrawals) != 1 {
		t.Fatalf("withdrawals: %d", len(ledger.withdrawals))
	}

	if err := s.PullCommission(assets, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("length mismatch: got %v", err)
	}
	if err := s.PullCommission(assets, []*big.Int{big.NewInt(0)}); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	s.SetLedger(nil)
	if err := s.PullCommission(assets, amounts); !errors.Is(err, ErrNilLedger) {
		t.Fatalf("nil ledger: got %v", err)
	}
}

func TestSplitRewardAssetSkipsSwap(t *testing.T) {
	reward := testAddr(0xAB)
	bank := newMockBank(testAddr(0x10))
	bank.setHolding(reward, new(big.Int).Mul(big.NewInt(100), oneUnit))
	s := newTestSplitter(t, bank, SplitSettings{MintBps: 1000, BurnBps: 500})

	recipient := testAddr(0x77)
	results, err := s.SplitEarnedCommission([][20]byte{reward}, recipient)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results: %d", len(results))
	}
	r := results[0]

	// 100 units split 10% mint, 5% burn: the burn share alone is withheld,
	// so 95 units transfer out and 10 more are minted on top.
	wantMint := new(big.Int).Mul(big.NewInt(10), oneUnit)
	wantBurn := new(big.Int).Mul(big.NewInt(5), oneUnit)
	wantForwarded := new(big.Int).Mul(big.NewInt(95), oneUnit)
	if r.Minted.Cmp(wantMint) != 0 || r.Burned.Cmp(wantBurn) != 0 {
		t.Fatalf("shares: minted %s, burned %s", r.Minted, r.Burned)
	}
	wantDelivered := new(big.Int).Add(wantForwarded, wantMint)
	if r.Delivered.Cmp(wantDelivered) != 0 {
		t.Fatalf("delivered: got %s, want %s", r.Delivered, wantDelivered)
	}
	if bank.minted[recipient].Cmp(wantMint) != 0 {
		t.Fatalf("bank mint: %s", bank.minted[recipient])
	}
	if bank.burned.Cmp(wantBurn) != 0 {
		t.Fatalf("bank burn: %s", bank.burned)
	}
	if bank.transfers[recipient].Cmp(wantForwarded) != 0 {
		t.Fatalf("bank transfer: %s", bank.transfers[recipient])
	}
	if bank.holding(reward).Sign() != 0 {
		t.Fatalf("proceeds stranded in treasury: %s", bank.holding(reward))
	}
}

func TestSplitFullMintDoublesDelivery(t *testing.T) {
	reward := testAddr(0xAB)
	treasuryAddr := testAddr(0xCC)
	recipient := testAddr(0x77)
	b := bankpkg.New(testAddr(0xFE), treasuryAddr, gift.NativeAsset, testAddr(0x10), reward)
	held := new(big.Int).Mul(big.NewInt(100), oneUnit)
	if err := b.Mint(treasuryAddr, held); err != nil {
		t.Fatalf("seed treasury: %v", err)
	}

	s := NewSplitter(treasuryAddr, reward)
	s.SetBank(b)
	if err := s.SetSplitSettings(SplitSettings{MintBps: 10000}); err != nil {
		t.Fatalf("set split settings: %v", err)
	}
	if err := s.SetSwapSettings(testSwapSettings(testAddr(0x10))); err != nil {
		t.Fatalf("set swap settings: %v", err)
	}
	results, err := s.SplitEarnedCommission([][20]byte{reward}, recipient)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	// 100% mint share: the held 100 units are forwarded and 100 more are
	// minted, so the recipient ends up with twice the swapped amount.
	got, err := b.BalanceOf(reward, recipient)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	wantDelivered := new(big.Int).Mul(big.NewInt(200), oneUnit)
	if got.Cmp(wantDelivered) != 0 {
		t.Fatalf("recipient balance: got %s, want %s", got, wantDelivered)
	}
	if results[0].Delivered.Cmp(wantDelivered) != 0 {
		t.Fatalf("delivered: got %s, want %s", results[0].Delivered, wantDelivered)
	}
	leftover, err := b.BalanceOf(reward, treasuryAddr)
	if err != nil {
		t.Fatalf("treasury balance: %v", err)
	}
	if leftover.Sign() != 0 {
		t.Fatalf("proceeds stranded in treasury: %s", leftover)
	}
}

func TestSplitFullBurnDeliversNothing(t *testing.T) {
	reward := testAddr(0xAB)
	treasuryAddr := testAddr(0xCC)
	recipient := testAddr(0x77)
	b := bankpkg.New(testAddr(0xFE), treasuryAddr, gift.NativeAsset, testAddr(0x10), reward)
	held := new(big.Int).Mul(big.NewInt(40), oneUnit)
	if err := b.Mint(treasuryAddr, held); err != nil {
		t.Fatalf("seed treasury: %v", err)
	}
	supplyBefore := b.RewardSupply()

	s := NewSplitter(treasuryAddr, reward)
	s.SetBank(b)
	if err := s.SetSplitSettings(SplitSettings{BurnBps: 10000}); err != nil {
		t.Fatalf("set split settings: %v", err)
	}
	if err := s.SetSwapSettings(testSwapSettings(testAddr(0x10))); err != nil {
		t.Fatalf("set swap settings: %v", err)
	}
	results, err := s.SplitEarnedCommission([][20]byte{reward}, recipient)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	r := results[0]
	if r.Delivered.Sign() != 0 || r.Minted.Sign() != 0 {
		t.Fatalf("full burn delivered %s, minted %s", r.Delivered, r.Minted)
	}
	got, err := b.BalanceOf(reward, recipient)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("recipient received %s on a full burn", got)
	}
	wantSupply := new(big.Int).Sub(supplyBefore, held)
	if b.RewardSupply().Cmp(wantSupply) != 0 {
		t.Fatalf("supply: got %s, want %s", b.RewardSupply(), wantSupply)
	}
}

func TestSplitNativeWrapsAndSwaps(t *testing.T) {
	wrapped := testAddr(0x10)
	reward := testAddr(0xAB)
	bank := newMockBank(wrapped)
	nativeBalance := new(big.Int).Mul(big.NewInt(4), oneUnit)
	bank.setHolding(gift.NativeAsset, nativeBalance)

	valuer := newMockValuer()
	// Wrapped native at $1500, reward at $2: 4 wrapped units should buy
	// 3000 reward units before slippage.
	valuer.setPrice(wrapped, new(big.Int).Mul(big.NewInt(1500), oneUnit))
	valuer.setPrice(reward, new(big.Int).Mul(big.NewInt(2), oneUnit))

	router := &mockRouter{out: new(big.Int).Mul(big.NewInt(2990), oneUnit), bank: bank, reward: reward}
	s := newTestSplitter(t, bank, SplitSettings{MintBps: 0, BurnBps: 0})
	s.SetRouter(router)
	s.SetValuer(valuer)

	recipient := testAddr(0x77)
	results, err := s.SplitEarnedCommission([][20]byte{gift.NativeAsset}, recipient)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if bank.holding(gift.NativeAsset).Sign() != 0 {
		t.Fatalf("native not wrapped")
	}
	if router.path.AssetIn != wrapped || router.path.AssetOut != reward {
		t.Fatalf("swap path: %+v", router.path)
	}
	if router.lastIn.Cmp(nativeBalance) != 0 {
		t.Fatalf("swap input: %s", router.lastIn)
	}
	// 1% slippage off the 3000-unit oracle expectation.
	wantMin := new(big.Int).Mul(big.NewInt(2970), oneUnit)
	if router.lastMin.Cmp(wantMin) != 0 {
		t.Fatalf("min out: got %s, want %s", router.lastMin, wantMin)
	}
	if results[0].Delivered.Cmp(router.out) != 0 {
		t.Fatalf("delivered: %s", results[0].Delivered)
	}
	if bank.transfers[recipient].Cmp(router.out) != 0 {
		t.Fatalf("transfer: %s", bank.transfers[recipient])
	}
}

func TestSplitRejectsSwapBelowMinimum(t *testing.T) {
	wrapped := testAddr(0x10)
	reward := testAddr(0xAB)
	bank := newMockBank(wrapped)
	bank.setHolding(wrapped, new(big.Int).Mul(big.NewInt(4), oneUnit))

	valuer := newMockValuer()
	valuer.setPrice(wrapped, new(big.Int).Mul(big.NewInt(1500), oneUnit))
	valuer.setPrice(reward, new(big.Int).Mul(big.NewInt(2), oneUnit))

	router := &mockRouter{out: new(big.Int).Mul(big.NewInt(2000), oneUnit)}
	s := newTestSplitter(t, bank, SplitSettings{})
	s.SetRouter(router)
	s.SetValuer(valuer)

	_, err := s.SplitEarnedCommission([][20]byte{wrapped}, testAddr(0x77))
	if !errors.Is(err, ErrAmountTooLow) {
		t.Fatalf("expected amount too low, got %v", err)
	}
}

func TestSplitZeroBalance(t *testing.T) {
	bank := newMockBank(testAddr(0x10))
	s := newTestSplitter(t, bank, SplitSettings{})
	_, err := s.SplitEarnedCommission([][20]byte{testAddr(0xAB)}, testAddr(0x77))
	if !errors.Is(err, ErrZeroBalance) {
		t.Fatalf("expected zero balance, got %v", err)
	}
}

func TestSplitRequiresRouterForForeignAssets(t *testing.T) {
	token := testAddr(0x55)
	bank := newMockBank(testAddr(0x10))
	bank.setHolding(token, oneUnit)
	s := newTestSplitter(t, bank, SplitSettings{})
	_, err := s.SplitEarnedCommission([][20]byte{token}, testAddr(0x77))
	if !errors.Is(err, ErrNilRouter) {
		t.Fatalf("expected nil router, got %v", err)
	}
}

func TestSplitRejectsZeroRecipient(t *testing.T) {
	bank := newMockBank(testAddr(0x10))
	s := newTestSplitter(t, bank, SplitSettings{})
	if _, err := s.SplitEarnedCommission(nil, [20]byte{}); !errors.Is(err, ErrZeroRecipient) {
		t.Fatalf("expected zero recipient, got %v", err)
	}
	s.SetBank(nil)
	if _, err := s.SplitEarnedCommission(nil, testAddr(0x77)); !errors.Is(err, ErrNilBank) {
		t.Fatalf("expected nil bank, got %v", err)
	}
}

func TestSplitSettingsValidate(t *testing.T) {
	if err := (SplitSettings{MintBps: 6000, BurnBps: 5000}).Validate(); !errors.Is(err, ErrSplitBounds) {
		t.Fatalf("expected split bounds error, got %v", err)
	}
	if err := (SplitSettings{MintBps: 10001}).Validate(); !errors.Is(err, ErrSplitBounds) {
		t.Fatalf("expected split bounds error, got %v", err)
	}
	if err := (SplitSettings{MintBps: 5000, BurnBps: 5000}).Validate(); err != nil {
		t.Fatalf("exact whole should validate: %v", err)
	}
}

func TestSwapSettingsValidate(t *testing.T) {
	settings := testSwapSettings(testAddr(0x10))
	if err := settings.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	broken := settings
	broken.WrappedNative = [20]byte{}
	if err := broken.Validate(); err == nil {
		t.Fatalf("missing wrapped native accepted")
	}
	broken = settings
	broken.SlippageBps = 10001
	if err := broken.Validate(); err == nil {
		t.Fatalf("excess slippage accepted")
	}
}
