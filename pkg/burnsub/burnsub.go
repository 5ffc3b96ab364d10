// Copyright 2025 Certen Protocol
//
// BurnSubstitutor periodically fronts L1 payouts for rollup-finalized
// burns ahead of settlement. Grounded on pkg/anchor's periodic
// tick()-shaped poll loop and pkg/intent's
// LoadIntentLastBlock/SaveIntentLastBlock idempotence pattern; tracking
// here rides on BlockStore's own KV rather than a second persistence
// layer, per SPEC_FULL.md §4.8.

package burnsub

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SatsBridge/payy/pkg/blockstore"
	"github.com/SatsBridge/payy/pkg/types"
)

// L1 is the subset of l1gateway.Gateway a substitution tick needs.
type L1 interface {
	SubstituteBurn(ctx context.Context, recipient common.Address, amount *big.Int) (common.Hash, error)
}

// SettledTracker records and checks which burns have already been
// substituted, keyed by burn txn hash, backed by the same KV store as
// BlockStore to avoid a redundant persistence layer.
type SettledTracker interface {
	IsSubstituted(burnTxnHash types.Element) (bool, error)
	MarkSubstituted(burnTxnHash types.Element, l1TxnHash common.Hash) error
}

// Substitutor discovers burns in committed blocks that it has not already
// substituted and fronts their payouts. It does not check whether a
// burn's block has already been settled on L1.
type Substitutor struct {
	Blocks  *blockstore.Store
	L1      L1
	Tracker SettledTracker

	// RecipientOf resolves a burn proof's note-kind/value to an L1
	// address and token amount; supplied by the wiring layer since the
	// recipient address lives in the proof's KindMessage.To field.
	RecipientOf func(kind types.KindMessage) (common.Address, *big.Int)
}

// Tick scans blocks from fromHeight through the current latest height for
// burn proofs, fronting any not already substituted. It returns the
// height to resume scanning from on the next tick.
func (s *Substitutor) Tick(ctx context.Context, fromHeight uint64) (uint64, error) {
	latest := s.Blocks.LatestHeight()
	height := fromHeight

	for h := fromHeight; h <= latest; h++ {
		block, ok, err := s.Blocks.GetBlock(h)
		if err != nil {
			return height, fmt.Errorf("burnsub: get block %d: %w", h, err)
		}
		if !ok {
			continue
		}

		for _, p := range block.Content.Proofs {
			if p.Kind.Tag != types.KindBurn {
				continue
			}
			burnTxnHash := p.Hash()

			done, err := s.Tracker.IsSubstituted(burnTxnHash)
			if err != nil {
				return height, fmt.Errorf("burnsub: check substituted: %w", err)
			}
			if done {
				continue
			}

			recipient, amount := s.RecipientOf(p.Kind)
			l1Tx, err := s.L1.SubstituteBurn(ctx, recipient, amount)
			if err != nil {
				return height, fmt.Errorf("burnsub: substitute burn %s: %w", burnTxnHash.Hex(), err)
			}
			if err := s.Tracker.MarkSubstituted(burnTxnHash, l1Tx); err != nil {
				return height, fmt.Errorf("burnsub: mark substituted: %w", err)
			}
		}

		height = h + 1
	}

	return height, nil
}
