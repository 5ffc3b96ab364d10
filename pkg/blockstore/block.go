// Copyright 2025 Certen Protocol
//
// Block - the append-only unit BlockStore persists. Grounded on
// pkg/ledger/types.go's JSON-serializable block-metadata structs.

package blockstore

import (
	"crypto/sha256"
	"time"

	"github.com/SatsBridge/payy/pkg/types"
)

// Header identifies a block's position in the chain.
type Header struct {
	Height    uint64        `json:"height"`
	PrevHash  types.Element `json:"prev_hash"`
	CreatedAt time.Time     `json:"created_at"`
}

// Content is the ordered sequence of admitted proofs and the commitment
// tree root after they have all been applied.
type Content struct {
	Proofs   []*types.UtxoProof `json:"proofs"`
	RootHash types.Element      `json:"root_hash"`
}

// Block is a finalized rollup block: header, content, and a derived hash.
type Block struct {
	Header  Header  `json:"header"`
	Content Content `json:"content"`
}

// Hash computes the block's content-addressed identifier: SHA-256 over the
// height, previous hash, post-block root hash and every proof's txn hash,
// following the corpus's hash-the-canonical-fields convention
// (pkg/commitment.HashConcat). The top three bits are cleared so the
// result is a valid Element below types.Modulus.
func (b *Block) Hash() types.Element {
	h := sha256.New()
	heightBytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		heightBytes[7-i] = byte(b.Header.Height >> (8 * i))
	}
	h.Write(heightBytes)
	h.Write(b.Header.PrevHash.Bytes())
	h.Write(b.Content.RootHash.Bytes())
	for _, p := range b.Content.Proofs {
		txHash := p.Hash()
		h.Write(txHash.Bytes())
	}
	sum := h.Sum(nil)
	sum[0] &= 0x1f
	var e types.Element
	copy(e[:], sum)
	return e
}
