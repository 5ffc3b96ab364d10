// Copyright 2025 Certen Protocol
//
// UtxoProof - the public-input shape of a zero-knowledge UTXO transaction.
// Grounded on pkg/crypto/bls_zkp's public/private witness split and
// pkg/commitment's canonical-hash helpers.

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// NoteKind tags the asset kind a note represents. The rollup treats it as
// an opaque small integer; specific kinds are a deployment concern.
type NoteKind uint32

// KindTag discriminates the UtxoProof's kind_messages variant.
type KindTag uint8

const (
	KindSend KindTag = iota
	KindMint
	KindBurn
)

func (t KindTag) String() string {
	switch t {
	case KindSend:
		return "send"
	case KindMint:
		return "mint"
	case KindBurn:
		return "burn"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// KindMessage is the tagged variant carried by a UtxoProof's public inputs.
// Only the fields relevant to Tag are meaningful.
type KindMessage struct {
	Tag KindTag `json:"tag"`

	// Mint fields
	MintHash Element  `json:"mint_hash,omitempty"`
	Value    uint64   `json:"value,omitempty"`
	NoteKind NoteKind `json:"note_kind,omitempty"`

	// Burn fields
	To Element `json:"to,omitempty"`
	// Burn reuses Value and NoteKind above.
}

// Mint constructs a Mint KindMessage.
func Mint(mintHash Element, value uint64, kind NoteKind) KindMessage {
	return KindMessage{Tag: KindMint, MintHash: mintHash, Value: value, NoteKind: kind}
}

// Burn constructs a Burn KindMessage.
func Burn(to Element, value uint64, kind NoteKind) KindMessage {
	return KindMessage{Tag: KindBurn, To: to, Value: value, NoteKind: kind}
}

// Send constructs a Send KindMessage (no mint/burn side effects).
func Send() KindMessage {
	return KindMessage{Tag: KindSend}
}

// UtxoProof is an opaque cryptographic proof plus its public inputs.
// InputCommitments and OutputCommitments are fixed-arity ordered tuples;
// Zero entries are padding slots and are ignored by every validity rule.
type UtxoProof struct {
	ProofBytes        []byte      `json:"proof_bytes"`
	InputCommitments  []Element   `json:"input_commitments"`
	OutputCommitments []Element   `json:"output_commitments"`
	RecentRoot        Element     `json:"recent_root"`
	Kind              KindMessage `json:"kind"`

	hash    Element `json:"-"`
	hashSet bool    `json:"-"`
}

// NewUtxoProof constructs a UtxoProof and precomputes its content hash.
func NewUtxoProof(proofBytes []byte, inputs, outputs []Element, recentRoot Element, kind KindMessage) *UtxoProof {
	p := &UtxoProof{
		ProofBytes:        proofBytes,
		InputCommitments:  inputs,
		OutputCommitments: outputs,
		RecentRoot:        recentRoot,
		Kind:              kind,
	}
	p.hash = p.computeHash()
	p.hashSet = true
	return p
}

// Hash returns the deterministic content hash used as the transaction
// identifier. It is computed once and cached.
func (p *UtxoProof) Hash() Element {
	if !p.hashSet {
		p.hash = p.computeHash()
		p.hashSet = true
	}
	return p.hash
}

// computeHash follows the corpus's CombineHashes/HashConcat convention:
// SHA-256 over a canonical concatenation of every public field, reduced
// into the field via ElementFromBytes-compatible truncation.
func (p *UtxoProof) computeHash() Element {
	h := sha256.New()
	h.Write(p.RecentRoot.Bytes())
	for _, e := range p.InputCommitments {
		h.Write(e.Bytes())
	}
	for _, e := range p.OutputCommitments {
		h.Write(e.Bytes())
	}
	h.Write([]byte{byte(p.Kind.Tag)})
	switch p.Kind.Tag {
	case KindMint:
		h.Write(p.Kind.MintHash.Bytes())
		h.Write(uint64Bytes(p.Kind.Value))
		h.Write(uint32Bytes(uint32(p.Kind.NoteKind)))
	case KindBurn:
		h.Write(p.Kind.To.Bytes())
		h.Write(uint64Bytes(p.Kind.Value))
		h.Write(uint32Bytes(uint32(p.Kind.NoteKind)))
	}
	sum := h.Sum(nil)
	// Clearing the top three bits keeps the digest below 2^253, which is
	// strictly below the field modulus.
	sum[0] &= 0x1f
	var e Element
	copy(e[:], sum)
	return e
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// NonPaddingInputs returns InputCommitments filtered of Zero padding slots.
func (p *UtxoProof) NonPaddingInputs() []Element {
	return filterNonZero(p.InputCommitments)
}

// NonPaddingOutputs returns OutputCommitments filtered of Zero padding slots.
func (p *UtxoProof) NonPaddingOutputs() []Element {
	return filterNonZero(p.OutputCommitments)
}

func filterNonZero(elems []Element) []Element {
	out := make([]Element, 0, len(elems))
	for _, e := range elems {
		if !e.IsZero() {
			out = append(out, e)
		}
	}
	return out
}
