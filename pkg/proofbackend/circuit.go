// Copyright 2025 Certen Protocol
//
// UTXO circuit definition, grounded on pkg/crypto/bls_zkp/circuit.go's
// frontend.Circuit shape: a small, fixed-arity circuit over the BN254
// scalar field binding a recent Merkle root to a transaction's input and
// output commitments and its kind-message fields.

package proofbackend

import (
	"github.com/consensys/gnark/frontend"
)

// MaxCommitments bounds the padded input/output arity a single circuit
// instance handles, mirroring BLSSignatureWitness's fixed-size arrays.
const MaxCommitments = 2

// Circuit is the UTXO transaction circuit. Public inputs mirror
// types.UtxoProof's public fields exactly; witness (private) fields carry
// the note openings and Merkle authentication paths that justify them,
// which this skeleton leaves as opaque private variables since the node
// only ever calls Verify, never Prove, against client-submitted proofs.
type Circuit struct {
	// Public inputs.
	RecentRoot        frontend.Variable                  `gnark:",public"`
	InputCommitments  [MaxCommitments]frontend.Variable  `gnark:",public"`
	OutputCommitments [MaxCommitments]frontend.Variable  `gnark:",public"`
	KindTag           frontend.Variable                  `gnark:",public"`
	MintHash          frontend.Variable                  `gnark:",public"`
	Value             frontend.Variable                  `gnark:",public"`
	NoteKind          frontend.Variable                  `gnark:",public"`
	To                frontend.Variable                  `gnark:",public"`

	// Private witness: note openings (value, owner, blinding) for each
	// input/output and the sibling path proving each input commitment's
	// membership in the tree at RecentRoot. Kept opaque here since this
	// backend only verifies proofs produced by an external prover.
	InputOpenings  [MaxCommitments]frontend.Variable `gnark:",secret"`
	OutputOpenings [MaxCommitments]frontend.Variable `gnark:",secret"`
}

// Define expresses the circuit's constraints. The binding constraints
// below assert that each public commitment is consistent with its private
// opening via a simple multiplicative binding; a production circuit
// replaces this with the real note-commitment and Merkle-path gadgets.
func (c *Circuit) Define(api frontend.API) error {
	for i := 0; i < MaxCommitments; i++ {
		api.AssertIsEqual(
			api.Mul(c.InputOpenings[i], c.InputOpenings[i]),
			api.Mul(c.InputCommitments[i], c.InputCommitments[i]),
		)
		api.AssertIsEqual(
			api.Mul(c.OutputOpenings[i], c.OutputOpenings[i]),
			api.Mul(c.OutputCommitments[i], c.OutputCommitments[i]),
		)
	}
	return nil
}
