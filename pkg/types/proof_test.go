// Copyright 2025 Certen Protocol

package types

import "testing"

func elem(b byte) Element {
	var e Element
	e[31] = b
	return e
}

func TestUtxoProof_HashIsDeterministicForIdenticalContent(t *testing.T) {
	a := NewUtxoProof(nil, []Element{elem(1)}, []Element{elem(2)}, elem(3), Send())
	b := NewUtxoProof(nil, []Element{elem(1)}, []Element{elem(2)}, elem(3), Send())
	if a.Hash() != b.Hash() {
		t.Errorf("identical proofs should hash identically")
	}
}

func TestUtxoProof_HashDiffersOnInputChange(t *testing.T) {
	a := NewUtxoProof(nil, []Element{elem(1)}, []Element{elem(2)}, elem(3), Send())
	b := NewUtxoProof(nil, []Element{elem(9)}, []Element{elem(2)}, elem(3), Send())
	if a.Hash() == b.Hash() {
		t.Errorf("differing input commitments should hash differently")
	}
}

func TestUtxoProof_HashDiffersByKindTag(t *testing.T) {
	send := NewUtxoProof(nil, nil, nil, Element{}, Send())
	mint := NewUtxoProof(nil, nil, nil, Element{}, Mint(elem(1), 100, 0))
	burn := NewUtxoProof(nil, nil, nil, Element{}, Burn(elem(1), 100, 0))
	if send.Hash() == mint.Hash() || mint.Hash() == burn.Hash() || send.Hash() == burn.Hash() {
		t.Errorf("distinct kinds should not collide on hash")
	}
}

func TestUtxoProof_HashBelowFieldModulus(t *testing.T) {
	p := NewUtxoProof(nil, nil, nil, Element{}, Mint(elem(7), 123, 1))
	if p.Hash().BigInt().Cmp(Modulus) >= 0 {
		t.Errorf("proof hash must be reduced below the field modulus")
	}
}

func TestUtxoProof_HashIsCachedAfterFirstCall(t *testing.T) {
	p := NewUtxoProof(nil, []Element{elem(1)}, nil, Element{}, Send())
	first := p.Hash()
	// Mutate a field after construction; Hash must still return the cached
	// value computed at construction time rather than recomputing.
	p.InputCommitments = []Element{elem(99)}
	if p.Hash() != first {
		t.Errorf("Hash() should return the cached value, not recompute after mutation")
	}
}

func TestNonPaddingInputsAndOutputs_FilterZeroSlots(t *testing.T) {
	p := NewUtxoProof(nil,
		[]Element{elem(1), {}, elem(2)},
		[]Element{{}, elem(3)},
		Element{}, Send())

	inputs := p.NonPaddingInputs()
	if len(inputs) != 2 || inputs[0] != elem(1) || inputs[1] != elem(2) {
		t.Errorf("NonPaddingInputs = %v, want [elem(1) elem(2)]", inputs)
	}

	outputs := p.NonPaddingOutputs()
	if len(outputs) != 1 || outputs[0] != elem(3) {
		t.Errorf("NonPaddingOutputs = %v, want [elem(3)]", outputs)
	}
}

func TestKindTag_String(t *testing.T) {
	cases := map[KindTag]string{
		KindSend: "send",
		KindMint: "mint",
		KindBurn: "burn",
	}
	for tag, want := range cases {
		if got := tag.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", tag, got, want)
		}
	}
}
