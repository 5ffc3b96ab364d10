// Copyright 2025 Certen Protocol

package burnsub

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SatsBridge/payy/pkg/kv"
	"github.com/SatsBridge/payy/pkg/types"
)

var keySubstitutedPrefix = []byte("blockstore:burnsub:substituted:")

func substitutedKey(burnTxnHash types.Element) []byte {
	return append(append([]byte{}, keySubstitutedPrefix...), burnTxnHash[:]...)
}

// KVTracker implements SettledTracker against the same kv.Store instance
// BlockStore persists into, under its own key prefix, so no second
// database is opened for idempotence bookkeeping.
type KVTracker struct {
	Store kv.Store
}

// IsSubstituted reports whether burnTxnHash has already been fronted.
func (t *KVTracker) IsSubstituted(burnTxnHash types.Element) (bool, error) {
	ok, err := t.Store.Has(substitutedKey(burnTxnHash))
	if err != nil {
		return false, fmt.Errorf("burnsub: check substituted: %w", err)
	}
	return ok, nil
}

// MarkSubstituted records burnTxnHash as fronted via l1TxnHash.
func (t *KVTracker) MarkSubstituted(burnTxnHash types.Element, l1TxnHash common.Hash) error {
	if err := t.Store.Set(substitutedKey(burnTxnHash), l1TxnHash.Bytes()); err != nil {
		return fmt.Errorf("burnsub: mark substituted: %w", err)
	}
	return nil
}
