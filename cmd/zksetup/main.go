// Copyright 2025 Certen Protocol
//
// zksetup generates the UTXO circuit's Groth16 proving and verifying keys
// for local testing, in the same flag-parse/compile/write-keys shape as
// the BLS ZK prover's own setup CLI.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/SatsBridge/payy/pkg/proofbackend"
)

func main() {
	pkPath := flag.String("pk", "proving_key.bin", "Output path for the Groth16 proving key")
	vkPath := flag.String("vk", "verifying_key.bin", "Output path for the Groth16 verifying key")
	flag.Parse()

	if err := proofbackend.Setup(*pkPath, *vkPath); err != nil {
		fmt.Fprintf(os.Stderr, "zksetup: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("zksetup: wrote %s and %s\n", *pkPath, *vkPath)
}
