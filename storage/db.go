package storage

import (
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// Database is the key-value backend the ledger store runs on. Get reports
// missing keys through the boolean rather than an error so callers can
// distinguish absence from backend failure.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) (value []byte, found bool, err error)
	Close() error
}

// MemDB is the in-memory backend used by tests and local runs.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (db *MemDB) Close() error { return nil }

// LevelDB is the persistent backend.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

func (ldb *LevelDB) Get(key []byte) ([]byte, bool, error) {
	value, err := ldb.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (ldb *LevelDB) Close() error {
	return ldb.db.Close()
}
