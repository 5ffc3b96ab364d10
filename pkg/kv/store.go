// Copyright 2025 Certen Protocol
//
// KV is the shared key-value storage interface backing both the
// commitment tree and the block store, so a single on-disk database can
// serve both (grounded on pkg/kvdb/adapter.go + pkg/ledger/store.go's KV
// interface, generalized to also export ordered iterators; BlockStore's
// own listings read blocks height by height with Get).

package kv

import dbm "github.com/cometbft/cometbft-db"

// Store is the minimal key-value contract the rollup's persistent
// components depend on.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Has(key []byte) (bool, error)
	// Iterator returns a key-ordered iterator over [start, end). A nil end
	// means "no upper bound".
	Iterator(start, end []byte) (dbm.Iterator, error)
	ReverseIterator(start, end []byte) (dbm.Iterator, error)
}

// Adapter wraps a cometbft-db dbm.DB and exposes Store. Writes use SetSync
// so every mutation is durable before the caller's latch is released,
// matching KVAdapter.Set's own use of SetSync.
type Adapter struct {
	db dbm.DB
}

// NewAdapter wraps db.
func NewAdapter(db dbm.DB) *Adapter {
	return &Adapter{db: db}
}

// Get implements Store.
func (a *Adapter) Get(key []byte) ([]byte, error) {
	if a.db == nil {
		return nil, nil
	}
	return a.db.Get(key)
}

// Set implements Store.
func (a *Adapter) Set(key, value []byte) error {
	if a.db == nil {
		return nil
	}
	return a.db.SetSync(key, value)
}

// Has implements Store.
func (a *Adapter) Has(key []byte) (bool, error) {
	if a.db == nil {
		return false, nil
	}
	return a.db.Has(key)
}

// Iterator implements Store.
func (a *Adapter) Iterator(start, end []byte) (dbm.Iterator, error) {
	return a.db.Iterator(start, end)
}

// ReverseIterator implements Store.
func (a *Adapter) ReverseIterator(start, end []byte) (dbm.Iterator, error) {
	return a.db.ReverseIterator(start, end)
}
