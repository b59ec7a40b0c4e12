package bank

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrNegativeAmount      = errors.New("bank: negative amount")
	ErrUnknownAsset        = errors.New("bank: unknown wrap target")
)

// Bank is an in-process asset custody primitive: per-asset, per-owner
// balances with pull/push semantics for the ledger vault and the treasury
// operations the splitter needs. Production deployments replace it with the
// external execution environment; local runs and tests use it directly.
type Bank struct {
	mu            sync.Mutex
	balances      map[[20]byte]map[[20]byte]*big.Int
	vault         [20]byte
	treasury      [20]byte
	nativeAsset   [20]byte
	wrappedNative [20]byte
	rewardAsset   [20]byte
	rewardSupply  *big.Int
}

// New builds a bank. vault is the gift ledger's custody address, treasury
// the splitter's.
func New(vault, treasury, nativeAsset, wrappedNative, rewardAsset [20]byte) *Bank {
	return &Bank{
		balances:      make(map[[20]byte]map[[20]byte]*big.Int),
		vault:         vault,
		treasury:      treasury,
		nativeAsset:   nativeAsset,
		wrappedNative: wrappedNative,
		rewardAsset:   rewardAsset,
		rewardSupply:  big.NewInt(0),
	}
}

func (b *Bank) balance(asset, owner [20]byte) *big.Int {
	owners, ok := b.balances[asset]
	if !ok {
		owners = make(map[[20]byte]*big.Int)
		b.balances[asset] = owners
	}
	bal, ok := owners[owner]
	if !ok {
		bal = big.NewInt(0)
		owners[owner] = bal
	}
	return bal
}

func (b *Bank) move(asset, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal := b.balance(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset %x", ErrInsufficientBalance, asset)
	}
	fromBal.Sub(fromBal, amount)
	b.balance(asset, to).Add(b.balance(asset, to), amount)
	return nil
}

// Credit seeds an owner's balance. Dev-mode faucet; there is no on-ledger
// counterpart.
func (b *Bank) Credit(owner, asset [20]byte, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance(asset, owner).Add(b.balance(asset, owner), amount)
}

// Pull draws value from a party into the ledger vault. Implements the gift
// engine's custody primitive.
func (b *Bank) Pull(from [20]byte, asset [20]byte, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, from, b.vault, amount)
}

// Push moves vault-held value out to a recipient.
func (b *Bank) Push(to [20]byte, asset [20]byte, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, b.vault, to, amount)
}

// Balance reports the vault's holdings of an asset.
func (b *Bank) Balance(asset [20]byte) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balance(asset, b.vault)), nil
}

// BalanceOf reports an arbitrary owner's holdings.
func (b *Bank) BalanceOf(asset, owner [20]byte) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balance(asset, owner)), nil
}

// Transfer moves value out of the treasury's holdings.
func (b *Bank) Transfer(asset, to [20]byte, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.move(asset, b.treasury, to, amount)
}

// WrapNative converts treasury-held native currency into its wrapped form.
func (b *Bank) WrapNative(amount *big.Int) error {
	if b.wrappedNative == ([20]byte{}) {
		return ErrUnknownAsset
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	nativeBal := b.balance(b.nativeAsset, b.treasury)
	if amount == nil || amount.Sign() <= 0 || nativeBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: native", ErrInsufficientBalance)
	}
	nativeBal.Sub(nativeBal, amount)
	b.balance(b.wrappedNative, b.treasury).Add(b.balance(b.wrappedNative, b.treasury), amount)
	return nil
}

// Mint issues new reward-asset units to a recipient.
func (b *Bank) Mint(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance(b.rewardAsset, to).Add(b.balance(b.rewardAsset, to), amount)
	b.rewardSupply.Add(b.rewardSupply, amount)
	return nil
}

// Burn destroys reward-asset units held by the treasury.
func (b *Bank) Burn(amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balance(b.rewardAsset, b.treasury)
	if amount == nil || amount.Sign() < 0 || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: reward asset", ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	b.rewardSupply.Sub(b.rewardSupply, amount)
	return nil
}

// RewardSupply reports the net minted reward-asset supply.
func (b *Bank) RewardSupply() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.rewardSupply)
}
