// Copyright 2025 Certen Protocol
//
// Engine owns the single commit path applying a finalized block to the
// CommitmentTree and BlockStore, grounded on pkg/ledger/store.go's
// UpdateSystemLedgerOnCommit: one method invoked from a single caller,
// JSON-marshaling block metadata and persisting it with SetSync for
// durability.

package engine

import (
	"fmt"
	"log"

	"github.com/SatsBridge/payy/pkg/blockstore"
	"github.com/SatsBridge/payy/pkg/mempool"
	"github.com/SatsBridge/payy/pkg/merkletree"
	"github.com/SatsBridge/payy/pkg/metrics"
	"github.com/SatsBridge/payy/pkg/types"
)

// Engine is the sole owner of block application: only one block applies
// at a time, and readers never observe a partial mix of pre- and
// post-block state.
type Engine struct {
	Tree    *merkletree.Tree
	Blocks  *blockstore.Store
	Mempool *mempool.Mempool

	// Metrics is optional; when set, ApplyBlock reports the new chain
	// height, tree size, and mempool depth after each commit.
	Metrics *metrics.Metrics
}

// New constructs an Engine over the given tree, block store, and mempool.
func New(tree *merkletree.Tree, blocks *blockstore.Store, pool *mempool.Mempool) *Engine {
	return &Engine{Tree: tree, Blocks: blocks, Mempool: pool}
}

// ApplyBlock inserts every proof's output commitments under the tree's
// exclusive latch, reconciles the resulting root against the block
// header, persists the block (which itself records input removal via
// ElementHistory), then notifies the mempool. Block-production consensus
// is an abstract external collaborator — a caller assembling a new block
// (rather than replaying one handed down by that collaborator) leaves
// b.Content.RootHash as the zero element, and ApplyBlock fills in the
// root it computes. A non-zero RootHash that disagrees with the computed
// root is a consensus/state divergence: the node cannot recover in-place,
// so the process halts rather than limping on with corrupted state.
func (e *Engine) ApplyBlock(b *blockstore.Block) error {
	outputs := make([]types.Element, 0)
	for _, p := range b.Content.Proofs {
		outputs = append(outputs, p.NonPaddingOutputs()...)
	}

	root, err := e.Tree.InsertBatch(outputs, b.Header.Height)
	if err != nil {
		log.Fatalf("engine: fatal: insert block %d outputs: %v", b.Header.Height, err)
	}

	if b.Content.RootHash == (types.Element{}) {
		b.Content.RootHash = root
	} else if root != b.Content.RootHash {
		log.Fatalf("engine: fatal: block %d root mismatch: computed %s, header %s",
			b.Header.Height, root.Hex(), b.Content.RootHash.Hex())
	}

	if err := e.Blocks.AppendBlock(b); err != nil {
		return fmt.Errorf("engine: append block %d: %w", b.Header.Height, err)
	}

	for _, p := range b.Content.Proofs {
		e.Mempool.NotifyIncluded(p.Hash(), b.Header.Height, root)
	}

	if e.Metrics != nil {
		e.Metrics.BlockHeight.Set(float64(b.Header.Height))
		e.Metrics.TreeSize.Set(float64(e.Tree.Size()))
		e.Metrics.MempoolDepth.Set(float64(e.Mempool.Depth()))
	}

	return nil
}
