// Copyright 2025 Certen Protocol
//
// Backend wraps a gnark Groth16 verifying (and, when present, proving)
// key pair for the UTXO circuit. Grounded on pkg/crypto/bls_zkp/prover.go's
// BLSZKProver: a per-Backend sync.Once-guarded lazy load of the key files,
// followed by a single exclusive sync.Mutex serializing every Verify call
// against the loaded keys. Backend has no Prove method; the proving key is
// loaded but not used.

package proofbackend

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	paytypes "github.com/SatsBridge/payy/pkg/types"
)

// ErrInvalidProof is returned by Verify when the proof bytes or its public
// inputs do not satisfy the circuit, mirroring BLSZKProver.Verify's
// ErrInvalidSignature sentinel.
var ErrInvalidProof = fmt.Errorf("proofbackend: invalid proof")

// proofPrefixLen is the length of the framing prefix stripped from
// submitted proof bytes before gnark deserialization, following
// ToSolidityCalldata's encoded[4:] convention.
const proofPrefixLen = 4

// Backend is the node's single ProofBackend instance. It is safe for
// concurrent use: Verify takes the exclusive latch.
type Backend struct {
	once sync.Once
	mu   sync.Mutex

	cs  constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey

	pkPath, vkPath string
	loadErr        error
}

// New constructs a Backend that will lazily load its proving/verifying
// keys from the given paths on first use.
func New(pkPath, vkPath string) *Backend {
	return &Backend{pkPath: pkPath, vkPath: vkPath}
}

// ensureLoaded performs the one-time SRS load, compiling the circuit and
// reading the pre-generated key pair from disk. Safe to call from any
// goroutine; only the first caller pays the load cost.
func (b *Backend) ensureLoaded() error {
	b.once.Do(func() {
		var circuit Circuit
		cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
		if err != nil {
			b.loadErr = fmt.Errorf("proofbackend: compile circuit: %w", err)
			return
		}
		b.cs = cs

		pk := groth16.NewProvingKey(ecc.BN254)
		if pkFile, err := os.Open(b.pkPath); err == nil {
			defer pkFile.Close()
			if _, err := pk.ReadFrom(pkFile); err != nil {
				b.loadErr = fmt.Errorf("proofbackend: read proving key: %w", err)
				return
			}
			b.pk = pk
		}

		vkFile, err := os.Open(b.vkPath)
		if err != nil {
			b.loadErr = fmt.Errorf("proofbackend: open verifying key: %w", err)
			return
		}
		defer vkFile.Close()
		vk := groth16.NewVerifyingKey(ecc.BN254)
		if _, err := vk.ReadFrom(vkFile); err != nil {
			b.loadErr = fmt.Errorf("proofbackend: read verifying key: %w", err)
			return
		}
		b.vk = vk
	})
	return b.loadErr
}

// Verify checks proof against the UTXO circuit's public inputs derived
// from p, returning ErrInvalidProof (wrapped with the gnark failure) if the
// proof does not verify. Calls are serialized behind Backend's mutex,
// matching BLSZKProver's own single exclusive latch.
func (b *Backend) Verify(p *paytypes.UtxoProof) error {
	if err := b.ensureLoaded(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	raw := p.ProofBytes
	if len(raw) <= proofPrefixLen {
		return fmt.Errorf("%w: proof too short", ErrInvalidProof)
	}
	trimmed := raw[proofPrefixLen:]

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(trimmed)); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrInvalidProof, err)
	}

	witness, err := publicWitness(p)
	if err != nil {
		return fmt.Errorf("%w: witness: %v", ErrInvalidProof, err)
	}

	if err := groth16.Verify(proof, b.vk, witness); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}

// publicWitness builds the circuit's public-input assignment from a
// submitted UtxoProof, padding input/output commitment slices to
// MaxCommitments with the zero element. Private witness fields are left
// at their zero value: only
// the public assignment is needed since frontend.PublicOnly() discards
// secret variables when building the witness.
func publicWitness(p *paytypes.UtxoProof) (frontend.Witness, error) {
	assignment := Circuit{
		RecentRoot: p.RecentRoot.BigInt(),
		KindTag:    uint32(p.Kind.Tag),
		MintHash:   p.Kind.MintHash.BigInt(),
		Value:      p.Kind.Value,
		NoteKind:   uint32(p.Kind.NoteKind),
		To:         p.Kind.To.BigInt(),
	}
	for i := 0; i < MaxCommitments; i++ {
		if i < len(p.InputCommitments) {
			assignment.InputCommitments[i] = p.InputCommitments[i].BigInt()
		} else {
			assignment.InputCommitments[i] = 0
		}
		if i < len(p.OutputCommitments) {
			assignment.OutputCommitments[i] = p.OutputCommitments[i].BigInt()
		} else {
			assignment.OutputCommitments[i] = 0
		}
	}

	return frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
}
