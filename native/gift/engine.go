package gift

import (
	"fmt"
	"math/big"
	"time"

	"giftledger/core/events"
	"giftledger/core/types"
	"giftledger/native/fees"
	"giftledger/native/oracle"
)

// ledgerState is the persistence backend consumed by the engine. Gifts are
// append-only and addressed by their dense index; commission balances are
// tracked per asset.
type ledgerState interface {
	GiftCount() uint64
	GiftAppend(*Gift) error
	GiftGet(id uint64) (*Gift, bool)
	GiftPut(*Gift) error
	AccountGet(addr [20]byte) (*UserAccount, error)
	AccountPut(addr [20]byte, acc *UserAccount) error
	CommissionBalance(asset [20]byte) *big.Int
	CommissionCredit(asset [20]byte, amount *big.Int) error
	CommissionDebit(asset [20]byte, amount *big.Int) error
}

// Custody is the external asset-transfer primitive. Pull draws
// caller-authorized value from a party into ledger custody; Push moves
// ledger-held value out. Push can hand control to arbitrary recipient code,
// which is why every operation using it runs behind the engine's busy flag.
type Custody interface {
	Pull(from [20]byte, asset [20]byte, amount *big.Int) error
	Push(to [20]byte, asset [20]byte, amount *big.Int) error
	Balance(asset [20]byte) (*big.Int, error)
}

// Valuer converts an asset amount into an 18-decimal USD value.
type Valuer interface {
	ValueInUSD(asset [20]byte, amount *big.Int) (*big.Int, error)
}

// FeedRegistry receives the price feed bindings that accompany allowed-asset
// changes. oracle.Adapter satisfies it.
type FeedRegistry interface {
	SetFeed(asset [20]byte, feed oracle.PriceFeed)
	RemoveFeed(asset [20]byte)
}

type giftEvent struct {
	evt *types.Event
}

func (e giftEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e giftEvent) Event() *types.Event { return e.evt }

// Engine owns the gift state machine: creation, claims, refunds, overpayment
// bookkeeping and the per-asset commission pools. All value movement goes
// through the injected Custody primitive and every bookkeeping mutation
// happens before the external transfer it funds.
type Engine struct {
	state       ledgerState
	custody     Custody
	valuer      Valuer
	feeds       FeedRegistry
	emitter     events.Emitter
	registry    *assetRegistry
	commission  fees.CommissionTable
	refund      fees.RefundSettings
	rewardAsset [20]byte
	treasury    [20]byte
	instanceID  [32]byte
	blockFn     func() uint64
	nowFn       func() int64
	busy        bool
}

// NewEngine creates a gift engine with a no-op emitter. Collaborators are
// wired through the Set* methods before first use.
func NewEngine(instanceID [32]byte) *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		registry:   newAssetRegistry(),
		instanceID: instanceID,
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the persistence backend.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetCustody configures the asset-transfer primitive.
func (e *Engine) SetCustody(custody Custody) { e.custody = custody }

// SetValuer configures the USD price source.
func (e *Engine) SetValuer(valuer Valuer) { e.valuer = valuer }

// SetFeedRegistry configures the sink for price feed bindings managed
// alongside the allowed-asset registry. Optional.
func (e *Engine) SetFeedRegistry(feeds FeedRegistry) { e.feeds = feeds }

// SetRewardAsset configures the protocol's reward asset, eligible for the
// reduced commission rate.
func (e *Engine) SetRewardAsset(asset [20]byte) error {
	if asset == ([20]byte{}) {
		return ErrZeroAddress
	}
	old := e.rewardAsset
	e.rewardAsset = asset
	e.emit(newRewardAssetUpdatedEvent(old, asset))
	return nil
}

// SetTreasury configures the address receiving withdrawn commission.
func (e *Engine) SetTreasury(addr [20]byte) error {
	if addr == ([20]byte{}) {
		return ErrZeroAddress
	}
	old := e.treasury
	e.treasury = addr
	e.emit(newTreasuryUpdatedEvent(old, addr))
	return nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetBlockFunc overrides the block counter source. The refund windows are
// measured against it.
func (e *Engine) SetBlockFunc(fn func() uint64) {
	if fn == nil {
		e.blockFn = nil
		return
	}
	e.blockFn = fn
}

// SetNowFunc overrides the timestamp source, primarily for tests.
func (e *Engine) SetNowFunc(fn func() int64) {
	if fn == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = fn
}

// SetCommissionTable validates and installs a new tier table. A table with
// rates that grow as value grows is accepted but reported through the
// emitted event, never silently corrected.
func (e *Engine) SetCommissionTable(table fees.CommissionTable) error {
	monotonic, err := table.Validate()
	if err != nil {
		return err
	}
	old := e.commission
	e.commission = table.Clone()
	e.emit(newCommissionUpdatedEvent(old, table, monotonic))
	return nil
}

// SetRefundSettings validates and installs new refund windows.
func (e *Engine) SetRefundSettings(settings fees.RefundSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	old := e.refund
	e.refund = settings
	e.emit(newRefundUpdatedEvent(old, settings))
	return nil
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(giftEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) currentBlock() uint64 {
	if e == nil || e.blockFn == nil {
		return 0
	}
	return e.blockFn()
}

// enter implements the single-operation mutual exclusion guard. Any
// operation that performs an external transfer acquires it before touching
// state and releases it via the returned func.
func (e *Engine) enter() (func(), error) {
	if e.busy {
		return nil, ErrReentrantCall
	}
	e.busy = true
	return func() { e.busy = false }, nil
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return ErrNilState
	case e.custody == nil:
		return ErrNilCustody
	case e.valuer == nil:
		return ErrNilValuer
	default:
		return nil
	}
}

func (e *Engine) loadGift(id uint64) (*Gift, error) {
	g, ok := e.state.GiftGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrGiftNotFound, id)
	}
	return g, nil
}

func (e *Engine) loadAccount(addr [20]byte) (*UserAccount, error) {
	acc, err := e.state.AccountGet(addr)
	if err != nil {
		return nil, err
	}
	return ensureAccount(acc), nil
}

// rewardUnits converts an 18-decimal USD value into reward-asset units at
// the current TWAP price.
func (e *Engine) rewardUnits(usdValue *big.Int) (*big.Int, error) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	unitPrice, err := e.valuer.ValueInUSD(e.rewardAsset, unit)
	if err != nil {
		return nil, err
	}
	if unitPrice.Sign() <= 0 {
		return nil, fmt.Errorf("gift: reward asset price unavailable")
	}
	out := new(big.Int).Mul(usdValue, unit)
	return out.Div(out, unitPrice), nil
}

// CreateGift validates, prices and records a new gift from giver to
// receiver. suppliedValue is the native currency attached to the call; any
// excess over the required payment is credited to the giver's refundable
// overpayment balance instead of failing. When payInReward is set the
// commission is charged in the reward asset at the reduced rate.
func (e *Engine) CreateGift(giver, receiver, asset [20]byte, amount *big.Int, payInReward bool, suppliedValue *big.Int) (*Gift, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	exit, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer exit()

	if receiver == ([20]byte{}) || giver == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	if giver == receiver {
		return nil, ErrSelfGift
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	isNative := asset == NativeAsset
	if !isNative && !e.registry.Contains(asset) {
		return nil, fmt.Errorf("%w: %x", ErrAssetNotAllowed, asset)
	}

	usdValue, err := e.valuer.ValueInUSD(asset, amount)
	if err != nil {
		return nil, err
	}
	rates, err := e.commission.RateFor(usdValue)
	if err != nil {
		return nil, err
	}

	chosenBps := rates.FullBps
	if payInReward {
		chosenBps = rates.ReducedBps
	}
	inKindCommission := fees.ApplyBps(amount, chosenBps)
	commissionUSD, err := e.valuer.ValueInUSD(asset, inKindCommission)
	if err != nil {
		return nil, err
	}

	commissionAsset := asset
	commissionAmount := inKindCommission
	if payInReward {
		commissionAsset = e.rewardAsset
		commissionAmount, err = e.rewardUnits(commissionUSD)
		if err != nil {
			return nil, err
		}
	}

	// Any failure after a successful pull returns the drawn value to the
	// giver: a gift either exists in full or the giver is made whole.
	type drawn struct {
		asset  [20]byte
		amount *big.Int
	}
	var held []drawn
	pull := func(asset [20]byte, amount *big.Int) error {
		if err := e.custody.Pull(giver, asset, amount); err != nil {
			return err
		}
		held = append(held, drawn{asset: asset, amount: amount})
		return nil
	}
	abort := func(cause error) (*Gift, error) {
		for _, h := range held {
			if pushErr := e.custody.Push(giver, h.asset, h.amount); pushErr != nil {
				return nil, fmt.Errorf("%v (returning pulled funds failed: %v)", cause, pushErr)
			}
		}
		return nil, cause
	}

	overpaid := big.NewInt(0)
	supplied := cloneBigInt(suppliedValue)
	if isNative {
		required := new(big.Int).Set(amount)
		if !payInReward {
			required.Add(required, commissionAmount)
		}
		if supplied.Cmp(required) < 0 {
			return nil, fmt.Errorf("%w: supplied %s, required %s", ErrInsufficientValue, supplied, required)
		}
		overpaid = new(big.Int).Sub(supplied, required)
		if err := pull(NativeAsset, supplied); err != nil {
			return nil, err
		}
		if payInReward {
			if err := pull(commissionAsset, commissionAmount); err != nil {
				return abort(err)
			}
		}
	} else {
		if err := pull(asset, amount); err != nil {
			return nil, err
		}
		if commissionAmount.Sign() > 0 {
			if err := pull(commissionAsset, commissionAmount); err != nil {
				return abort(err)
			}
		}
	}

	giverAcc, err := e.loadAccount(giver)
	if err != nil {
		return abort(err)
	}
	priorGiverAcc := giverAcc.Clone()
	receiverAcc, err := e.loadAccount(receiver)
	if err != nil {
		return abort(err)
	}
	priorReceiverAcc := receiverAcc.Clone()

	g := &Gift{
		ID:             e.state.GiftCount(),
		Giver:          giver,
		Receiver:       receiver,
		Asset:          asset,
		Amount:         cloneBigInt(amount),
		AmountUSD:      usdValue,
		CreatedAtBlock: e.currentBlock(),
		CreatedAtTime:  e.now(),
		Status:         GiftCreated,
	}
	if err := e.state.GiftAppend(g); err != nil {
		return abort(err)
	}

	// The appended record cannot be removed, so a failure past this point
	// closes it out as Refunded and restores the applied account snapshots
	// before the pulled value goes back.
	giverWritten := false
	receiverWritten := false
	unwind := func(cause error) (*Gift, error) {
		g.Status = GiftRefunded
		restoreErr := e.state.GiftPut(g)
		if restoreErr == nil && giverWritten {
			restoreErr = e.state.AccountPut(giver, priorGiverAcc)
		}
		if restoreErr == nil && receiverWritten {
			restoreErr = e.state.AccountPut(receiver, priorReceiverAcc)
		}
		if restoreErr != nil {
			return nil, fmt.Errorf("%v (restore failed: %v)", cause, restoreErr)
		}
		return abort(cause)
	}

	giverAcc.GivenGifts = append(giverAcc.GivenGifts, g.ID)
	giverAcc.TotalTurnoverUSD = new(big.Int).Add(giverAcc.TotalTurnoverUSD, usdValue)
	giverAcc.TotalCommissionPaidUSD = new(big.Int).Add(giverAcc.TotalCommissionPaidUSD, commissionUSD)
	if overpaid.Sign() > 0 {
		giverAcc.OverpaidNative = new(big.Int).Add(giverAcc.OverpaidNative, overpaid)
	}
	if err := e.state.AccountPut(giver, giverAcc); err != nil {
		return unwind(err)
	}
	giverWritten = true

	receiverAcc.ReceivedGifts = append(receiverAcc.ReceivedGifts, g.ID)
	if err := e.state.AccountPut(receiver, receiverAcc); err != nil {
		return unwind(err)
	}
	receiverWritten = true

	if commissionAmount.Sign() > 0 {
		if err := e.state.CommissionCredit(commissionAsset, commissionAmount); err != nil {
			return unwind(err)
		}
	}

	e.emit(newCreatedEvent(g, commissionAsset, commissionAmount))
	return g.Clone(), nil
}

// ClaimGift delivers the gift principal to its receiver.
func (e *Engine) ClaimGift(giftID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	g, err := e.loadGift(giftID)
	if err != nil {
		return err
	}
	if caller != g.Receiver {
		return ErrNotReceiver
	}
	return e.settleClaim(g)
}

// ClaimGiftFor claims a gift on behalf of a new receiver, authorized by a
// signature from the original receiver over the (instance, gift, receiver)
// digest. The reassignment happens exactly once, at claim time.
func (e *Engine) ClaimGiftFor(giftID uint64, newReceiver [20]byte, sig []byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if newReceiver == ([20]byte{}) {
		return ErrZeroAddress
	}
	g, err := e.loadGift(giftID)
	if err != nil {
		return err
	}
	signer, err := recoverClaimSigner(e.instanceID, giftID, newReceiver, sig)
	if err != nil {
		return err
	}
	if signer != g.Receiver {
		return ErrUnauthorizedSigner
	}
	if err := e.checkClaimable(g); err != nil {
		return err
	}

	oldReceiver := g.Receiver
	prior := g.Clone()
	oldAcc, err := e.loadAccount(oldReceiver)
	if err != nil {
		return err
	}
	priorOldAcc := oldAcc.Clone()
	newAcc, err := e.loadAccount(newReceiver)
	if err != nil {
		return err
	}
	priorNewAcc := newAcc.Clone()

	g.Receiver = newReceiver
	if err := e.state.GiftPut(g); err != nil {
		return err
	}
	oldAcc.ReceivedGifts = removeGiftIndex(oldAcc.ReceivedGifts, giftID)
	if err := e.state.AccountPut(oldReceiver, oldAcc); err != nil {
		return err
	}
	newAcc.ReceivedGifts = append(newAcc.ReceivedGifts, giftID)
	if err := e.state.AccountPut(newReceiver, newAcc); err != nil {
		return err
	}

	if err := e.settleClaim(g); err != nil {
		// A failed settlement unwinds the reassignment along with the
		// status: the gift stays bound to the original receiver.
		restoreErr := e.state.GiftPut(prior)
		if restoreErr == nil {
			restoreErr = e.state.AccountPut(oldReceiver, priorOldAcc)
		}
		if restoreErr == nil {
			restoreErr = e.state.AccountPut(newReceiver, priorNewAcc)
		}
		if restoreErr != nil {
			return fmt.Errorf("%v (restore failed: %v)", err, restoreErr)
		}
		return err
	}
	return nil
}

func (e *Engine) checkClaimable(g *Gift) error {
	switch g.Status {
	case GiftClaimed:
		return ErrAlreadyClaimed
	case GiftRefunded:
		return ErrAlreadyRefunded
	}
	return nil
}

// settleClaim marks the gift claimed, persists the transition and then pays
// out. A rejected payout rolls the status back so the claim can be retried.
func (e *Engine) settleClaim(g *Gift) error {
	if err := e.checkClaimable(g); err != nil {
		return err
	}
	prior := g.Clone()
	g.Status = GiftClaimed
	if err := e.state.GiftPut(g); err != nil {
		return err
	}
	if err := e.custody.Push(g.Receiver, g.Asset, g.Amount); err != nil {
		if restoreErr := e.state.GiftPut(prior); restoreErr != nil {
			return fmt.Errorf("%w: %v (restore failed: %v)", ErrTransferFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(newClaimedEvent(g))
	return nil
}

// RefundGift returns a gift's principal to its giver subject to the
// three-zone refund policy.
func (e *Engine) RefundGift(giftID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	g, err := e.loadGift(giftID)
	if err != nil {
		return err
	}
	if caller != g.Giver {
		return ErrNotGiver
	}
	switch g.Status {
	case GiftClaimed:
		return ErrAlreadyClaimed
	case GiftRefunded:
		return ErrAlreadyRefunded
	}

	ageBlocks := e.currentBlock() - g.CreatedAtBlock
	verdict := e.refund.Decide(ageBlocks)
	if verdict == fees.RefundClosed {
		return fmt.Errorf("%w: age %d blocks", ErrRefundWindowClosed, ageBlocks)
	}

	fee := big.NewInt(0)
	if verdict == fees.RefundWithFee {
		fee = fees.ApplyBps(g.Amount, e.refund.FeeBps)
	}
	payout := new(big.Int).Sub(g.Amount, fee)

	prior := g.Clone()
	g.Status = GiftRefunded
	if err := e.state.GiftPut(g); err != nil {
		return err
	}

	giverAcc, err := e.loadAccount(g.Giver)
	if err != nil {
		return err
	}
	priorAcc := giverAcc.Clone()
	giverAcc.TotalTurnoverUSD = subClamped(giverAcc.TotalTurnoverUSD, g.AmountUSD)
	if fee.Sign() > 0 {
		feeUSD, err := e.valuer.ValueInUSD(g.Asset, fee)
		if err != nil {
			return err
		}
		// The retained fee is new commission revenue, so it raises the
		// giver's paid aggregate rather than reversing it.
		giverAcc.TotalCommissionPaidUSD = new(big.Int).Add(giverAcc.TotalCommissionPaidUSD, feeUSD)
		if err := e.state.CommissionCredit(g.Asset, fee); err != nil {
			return err
		}
	}
	if err := e.state.AccountPut(g.Giver, giverAcc); err != nil {
		return err
	}

	if err := e.custody.Push(g.Giver, g.Asset, payout); err != nil {
		restoreErr := e.state.GiftPut(prior)
		if restoreErr == nil {
			restoreErr = e.state.AccountPut(g.Giver, priorAcc)
		}
		if restoreErr == nil && fee.Sign() > 0 {
			restoreErr = e.state.CommissionDebit(g.Asset, fee)
		}
		if restoreErr != nil {
			return fmt.Errorf("%w: %v (restore failed: %v)", ErrTransferFailed, err, restoreErr)
		}
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(newRefundedEvent(g, fee))
	return nil
}

// ClaimSurplusNative withdraws the caller's accumulated native overpayment.
// The balance is zeroed before the transfer; a rejected transfer leaves the
// balance zeroed and the funds recoverable only by retrying the push, which
// keeps the ledger's books consistent at all times.
func (e *Engine) ClaimSurplusNative(caller [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	exit, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer exit()

	acc, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}
	surplus := acc.OverpaidNative
	if surplus.Sign() <= 0 {
		return nil, ErrNoSurplus
	}
	acc.OverpaidNative = big.NewInt(0)
	if err := e.state.AccountPut(caller, acc); err != nil {
		return nil, err
	}
	if err := e.custody.Push(caller, NativeAsset, surplus); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(newSurplusClaimedEvent(caller, surplus))
	return cloneBigInt(surplus), nil
}

// WithdrawCommission moves accumulated commission out of ledger custody to
// the treasury. Balances are debited before the transfers run.
func (e *Engine) WithdrawCommission(assets [][20]byte, amounts []*big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if e.treasury == ([20]byte{}) {
		return ErrZeroAddress
	}
	if len(assets) != len(amounts) {
		return fmt.Errorf("%w: %d assets, %d amounts", ErrLengthMismatch, len(assets), len(amounts))
	}
	for i, amount := range amounts {
		if amount == nil || amount.Sign() <= 0 {
			return fmt.Errorf("%w: index %d", ErrZeroAmount, i)
		}
	}
	// Requests are aggregated per asset so an asset repeated across entries
	// cannot pass the balance check piecewise and then fail mid-debit.
	totals := make(map[[20]byte]*big.Int, len(assets))
	for i, asset := range assets {
		total, ok := totals[asset]
		if !ok {
			total = big.NewInt(0)
			totals[asset] = total
		}
		total.Add(total, amounts[i])
	}
	for asset, total := range totals {
		if e.state.CommissionBalance(asset).Cmp(total) < 0 {
			return fmt.Errorf("%w: asset %x", ErrCommissionBalance, asset)
		}
	}
	for i, asset := range assets {
		if err := e.state.CommissionDebit(asset, amounts[i]); err != nil {
			for j := 0; j < i; j++ {
				if restoreErr := e.state.CommissionCredit(assets[j], amounts[j]); restoreErr != nil {
					return fmt.Errorf("%v (restore failed: %v)", err, restoreErr)
				}
			}
			return err
		}
	}
	// Entries already pushed stay debited; the undelivered remainder is
	// credited back so pool balances always match held value.
	for i, asset := range assets {
		if err := e.custody.Push(e.treasury, asset, amounts[i]); err != nil {
			for j := i; j < len(assets); j++ {
				if restoreErr := e.state.CommissionCredit(assets[j], amounts[j]); restoreErr != nil {
					return fmt.Errorf("%w: asset %x: %v (restore failed: %v)", ErrTransferFailed, asset, err, restoreErr)
				}
			}
			return fmt.Errorf("%w: asset %x: %v", ErrTransferFailed, asset, err)
		}
		e.emit(newCommissionWithdrawnEvent(asset, amounts[i], e.treasury))
	}
	return nil
}

// AddAllowedAssets registers fungible assets and their price feeds.
func (e *Engine) AddAllowedAssets(assets [][20]byte, priceFeeds []oracle.PriceFeed) error {
	if len(assets) != len(priceFeeds) {
		return fmt.Errorf("%w: %d assets, %d feeds", ErrLengthMismatch, len(assets), len(priceFeeds))
	}
	for i, asset := range assets {
		if priceFeeds[i] == nil {
			return fmt.Errorf("%w: feed for asset %x", ErrZeroAddress, asset)
		}
		if err := e.registry.Add(asset); err != nil {
			return err
		}
		if e.feeds != nil {
			e.feeds.SetFeed(asset, priceFeeds[i])
		}
		e.emit(newAssetAddedEvent(asset))
	}
	return nil
}

// RemoveAllowedAsset delists an asset. Any outstanding commission balance is
// emptied to the treasury as part of the removal.
func (e *Engine) RemoveAllowedAsset(asset [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	outstanding := e.state.CommissionBalance(asset)
	if outstanding.Sign() > 0 {
		if e.treasury == ([20]byte{}) {
			return fmt.Errorf("%w: %s pending, treasury unset", ErrCommissionOutstanding, outstanding)
		}
		if err := e.state.CommissionDebit(asset, outstanding); err != nil {
			return err
		}
		if err := e.custody.Push(e.treasury, asset, outstanding); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}
	return e.delistAsset(asset)
}

// RemoveAllowedAssetEmergency delists an asset whose transfers no longer
// function, leaving any recorded commission balance stranded in state.
func (e *Engine) RemoveAllowedAssetEmergency(asset [20]byte) error {
	return e.delistAsset(asset)
}

func (e *Engine) delistAsset(asset [20]byte) error {
	if err := e.registry.Remove(asset); err != nil {
		return err
	}
	if e.feeds != nil {
		e.feeds.RemoveFeed(asset)
	}
	e.emit(newAssetRemovedEvent(asset))
	return nil
}

func removeGiftIndex(list []uint64, id uint64) []uint64 {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
