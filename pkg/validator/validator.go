// Copyright 2025 Certen Protocol
//
// Validate is the rollup's pure admission check: a sequence of sentinel-
// error-returning stages evaluated in order, grounded on
// pkg/verification/unified_verifier.go's multi-stage shape. No third-party
// dependency applies to "compare two structs and return a typed error",
// so the admission logic itself is stdlib only; it optionally reports to
// Metrics for observability.

package validator

import (
	"context"
	"fmt"

	"github.com/SatsBridge/payy/pkg/metrics"
	"github.com/SatsBridge/payy/pkg/types"
)

// ProofBackend is the subset of pkg/proofbackend.Backend the validator
// needs, kept as a narrow interface so tests can supply a fake verifier.
type ProofBackend interface {
	Verify(p *types.UtxoProof) error
}

// TreeSnapshot is the subset of a merkletree.Snapshot the validator reads.
type TreeSnapshot interface {
	ContainsElement(e types.Element) (bool, error)
}

// ElementHistorySource is the subset of blockstore.Store the validator
// reads to distinguish never-seen, present, and removed commitments.
type ElementHistorySource interface {
	GetElementHistory(e types.Element) (FirstInsertedBlock, error)
}

// FirstInsertedBlock mirrors blockstore.ElementHistory's shape without
// importing the blockstore package, keeping the validator's dependency
// graph a strict leaf.
type FirstInsertedBlock struct {
	FirstInsertedBlock *uint64
	LastRemovedBlock   *uint64
}

// L1Gateway is the subset of pkg/l1gateway.Gateway the Mint check reads.
type L1Gateway interface {
	BlockNumber(ctx context.Context) (uint64, error)
	GetMintAt(ctx context.Context, mintHash types.Element, atHeight uint64) (MintRegistration, bool, error)
}

// MintRegistration mirrors l1gateway.MintRegistration.
type MintRegistration struct {
	Amount   uint64
	NoteKind types.NoteKind
}

// Deps bundles the collaborators Validate reads from. SafeEthHeightOffset
// is subtracted from the current L1 height before querying a mint, so a
// mint is only trusted once it is safely behind the L1 chain tip.
type Deps struct {
	Proof               ProofBackend
	Tree                TreeSnapshot
	History             ElementHistorySource
	L1                  L1Gateway
	SafeEthHeightOffset uint64

	// Metrics is optional; when set, Validate reports the L1 safe height
	// used for the most recent mint check.
	Metrics *metrics.Metrics
}

// Validate runs every admission stage against proof in order, stopping at
// the first failing stage. It is a pure function of its snapshots: two
// calls against the same Deps values return the same result.
func Validate(ctx context.Context, d Deps, proof *types.UtxoProof) error {
	if err := d.Proof.Verify(proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	for _, e := range proof.NonPaddingInputs() {
		if e.BigInt().Cmp(types.Modulus) >= 0 {
			return fmt.Errorf("%w: input commitment out of range", ErrInvalidElementSize)
		}
		present, err := d.Tree.ContainsElement(e)
		if err != nil {
			return fmt.Errorf("validator: check input membership: %w", err)
		}
		if !present {
			return fmt.Errorf("%w: %s", ErrTxnInputCommitmentsNotInTree, e.Hex())
		}
	}

	for _, e := range proof.NonPaddingOutputs() {
		if e.BigInt().Cmp(types.Modulus) >= 0 {
			return fmt.Errorf("%w: output commitment out of range", ErrInvalidElementSize)
		}
		present, err := d.Tree.ContainsElement(e)
		if err != nil {
			return fmt.Errorf("validator: check output membership: %w", err)
		}
		if present {
			return fmt.Errorf("%w: %s", ErrTxnOutputCommitmentsExist, e.Hex())
		}
		hist, err := d.History.GetElementHistory(e)
		if err != nil {
			return fmt.Errorf("validator: check element history: %w", err)
		}
		if hist.FirstInsertedBlock != nil {
			return fmt.Errorf("%w: %s", ErrTxnOutputCommitmentsExistedRecently, e.Hex())
		}
	}

	if proof.Kind.Tag == types.KindMint {
		current, err := d.L1.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToGetEthBlockNumber, err)
		}
		safeHeight := uint64(0)
		if current > d.SafeEthHeightOffset {
			safeHeight = current - d.SafeEthHeightOffset
		}
		if d.Metrics != nil {
			d.Metrics.L1SafeHeight.Set(float64(safeHeight))
		}

		reg, ok, err := d.L1.GetMintAt(ctx, proof.Kind.MintHash, safeHeight)
		if err != nil {
			return fmt.Errorf("validator: query mint: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s at height %d", ErrMintIsNotInTheContract, proof.Kind.MintHash.Hex(), safeHeight)
		}
		if reg.Amount != proof.Kind.Value || reg.NoteKind != proof.Kind.NoteKind {
			return fmt.Errorf("%w: contract has {%d,%d}, proof claims {%d,%d}",
				ErrMintInContractIsDifferent, reg.Amount, reg.NoteKind, proof.Kind.Value, proof.Kind.NoteKind)
		}
	}

	return nil
}
