// Copyright 2025 Certen Protocol
//
// One-time Groth16 trusted setup for Circuit, grounded on
// pkg/crypto/bls_zkp/prover.go's BLSZKProver.Initialize/SaveKeys pair:
// compile, run groth16.Setup, then write pk/vk to disk for the running
// node to load via Backend.

package proofbackend

import (
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Setup compiles Circuit and runs a Groth16 trusted setup, writing the
// resulting proving and verifying keys to pkPath and vkPath. Intended for
// offline key generation (see cmd/zksetup), never called from the running
// node itself.
func Setup(pkPath, vkPath string) error {
	var circuit Circuit
	cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("proofbackend: compile circuit: %w", err)
	}

	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("proofbackend: groth16 setup: %w", err)
	}

	pkFile, err := os.Create(pkPath)
	if err != nil {
		return fmt.Errorf("proofbackend: create proving key file: %w", err)
	}
	defer pkFile.Close()
	if _, err := pk.WriteTo(pkFile); err != nil {
		return fmt.Errorf("proofbackend: write proving key: %w", err)
	}

	vkFile, err := os.Create(vkPath)
	if err != nil {
		return fmt.Errorf("proofbackend: create verifying key file: %w", err)
	}
	defer vkFile.Close()
	if _, err := vk.WriteTo(vkFile); err != nil {
		return fmt.Errorf("proofbackend: write verifying key: %w", err)
	}

	return nil
}
