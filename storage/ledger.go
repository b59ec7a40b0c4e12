package storage

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"giftledger/native/gift"
)

const giftCountKey = "gift/count"

var errNilRecord = fmt.Errorf("storage: nil record")

// LedgerStore persists gifts, user accounts and per-asset commission pools
// over a key-value Database. It satisfies the gift engine's state interface.
type LedgerStore struct {
	mu    sync.Mutex
	db    Database
	count uint64
}

// OpenLedgerStore wraps the database and loads the persisted gift counter.
func OpenLedgerStore(db Database) (*LedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: database required")
	}
	store := &LedgerStore{db: db}
	raw, found, err := db.Get([]byte(giftCountKey))
	if err != nil {
		return nil, err
	}
	if found {
		if len(raw) != 8 {
			return nil, fmt.Errorf("storage: corrupt gift counter")
		}
		store.count = binary.BigEndian.Uint64(raw)
	}
	return store, nil
}

func giftKey(id uint64) []byte {
	key := make([]byte, 0, 13)
	key = append(key, "gift/"...)
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], id)
	return append(key, idBytes[:]...)
}

func accountKey(addr [20]byte) []byte {
	return []byte("acct/" + hex.EncodeToString(addr[:]))
}

func commissionKey(asset [20]byte) []byte {
	return []byte("comm/" + hex.EncodeToString(asset[:]))
}

// GiftCount returns the number of gifts ever appended.
func (s *LedgerStore) GiftCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// GiftAppend stores a new gift at the next dense index. The gift's ID must
// match the current counter.
func (s *LedgerStore) GiftAppend(g *gift.Gift) error {
	if g == nil {
		return errNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID != s.count {
		return fmt.Errorf("storage: gift id %d out of sequence, expected %d", g.ID, s.count)
	}
	if err := s.putGift(g); err != nil {
		return err
	}
	next := s.count + 1
	var countBytes [8]byte
	binary.BigEndian.PutUint64(countBytes[:], next)
	if err := s.db.Put([]byte(giftCountKey), countBytes[:]); err != nil {
		return err
	}
	s.count = next
	return nil
}

// GiftGet loads a gift by index.
func (s *LedgerStore) GiftGet(id uint64) (*gift.Gift, bool) {
	raw, found, err := s.db.Get(giftKey(id))
	if err != nil || !found {
		return nil, false
	}
	g := new(gift.Gift)
	if err := json.Unmarshal(raw, g); err != nil {
		return nil, false
	}
	return g, true
}

// GiftPut overwrites an existing gift record.
func (s *LedgerStore) GiftPut(g *gift.Gift) error {
	if g == nil {
		return errNilRecord
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID >= s.count {
		return fmt.Errorf("storage: gift %d not appended", g.ID)
	}
	return s.putGift(g)
}

func (s *LedgerStore) putGift(g *gift.Gift) error {
	raw, err := json.Marshal(g.Clone())
	if err != nil {
		return err
	}
	return s.db.Put(giftKey(g.ID), raw)
}

// AccountGet loads the aggregate for addr; unknown addresses yield nil so
// the engine can lazily create them.
func (s *LedgerStore) AccountGet(addr [20]byte) (*gift.UserAccount, error) {
	raw, found, err := s.db.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	acc := new(gift.UserAccount)
	if err := json.Unmarshal(raw, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// AccountPut persists the aggregate for addr.
func (s *LedgerStore) AccountPut(addr [20]byte, acc *gift.UserAccount) error {
	if acc == nil {
		return errNilRecord
	}
	raw, err := json.Marshal(acc.Clone())
	if err != nil {
		return err
	}
	return s.db.Put(accountKey(addr), raw)
}

// CommissionBalance returns the accumulated commission for an asset.
func (s *LedgerStore) CommissionBalance(asset [20]byte) *big.Int {
	raw, found, err := s.db.Get(commissionKey(asset))
	if err != nil || !found {
		return big.NewInt(0)
	}
	balance, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return big.NewInt(0)
	}
	return balance
}

// CommissionCredit adds amount to an asset's commission pool.
func (s *LedgerStore) CommissionCredit(asset [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("storage: credit amount must be non-negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	balance := s.CommissionBalance(asset)
	balance.Add(balance, amount)
	return s.db.Put(commissionKey(asset), []byte(balance.String()))
}

// CommissionDebit removes amount from an asset's commission pool, failing if
// the pool would go negative.
func (s *LedgerStore) CommissionDebit(asset [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("storage: debit amount must be non-negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	balance := s.CommissionBalance(asset)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: asset %x", gift.ErrCommissionBalance, asset)
	}
	balance.Sub(balance, amount)
	return s.db.Put(commissionKey(asset), []byte(balance.String()))
}
