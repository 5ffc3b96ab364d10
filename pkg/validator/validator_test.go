// Copyright 2025 Certen Protocol

package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SatsBridge/payy/pkg/metrics"
	"github.com/SatsBridge/payy/pkg/types"
)

type fakeProofBackend struct {
	err error
}

func (f *fakeProofBackend) Verify(p *types.UtxoProof) error { return f.err }

type fakeTree struct {
	present map[types.Element]bool
}

func (f *fakeTree) ContainsElement(e types.Element) (bool, error) {
	return f.present[e], nil
}

type fakeHistory struct {
	history map[types.Element]FirstInsertedBlock
}

func (f *fakeHistory) GetElementHistory(e types.Element) (FirstInsertedBlock, error) {
	return f.history[e], nil
}

type fakeL1 struct {
	height        uint64
	regs          map[types.Element]MintRegistration
	queriedHeight uint64
	blockNumErr   error
}

func (f *fakeL1) BlockNumber(ctx context.Context) (uint64, error) {
	if f.blockNumErr != nil {
		return 0, f.blockNumErr
	}
	return f.height, nil
}

func (f *fakeL1) GetMintAt(ctx context.Context, mintHash types.Element, atHeight uint64) (MintRegistration, bool, error) {
	f.queriedHeight = atHeight
	reg, ok := f.regs[mintHash]
	return reg, ok, nil
}

func elementFromByte(b byte) types.Element {
	var e types.Element
	e[31] = b
	return e
}

func baseDeps() (Deps, *fakeTree, *fakeHistory, *fakeL1) {
	tree := &fakeTree{present: map[types.Element]bool{}}
	history := &fakeHistory{history: map[types.Element]FirstInsertedBlock{}}
	l1 := &fakeL1{height: 100, regs: map[types.Element]MintRegistration{}}
	deps := Deps{
		Proof:               &fakeProofBackend{},
		Tree:                tree,
		History:             history,
		L1:                  l1,
		SafeEthHeightOffset: 6,
	}
	return deps, tree, history, l1
}

func TestValidate_InvalidProofRejectedFirst(t *testing.T) {
	deps, _, _, _ := baseDeps()
	deps.Proof = &fakeProofBackend{err: errors.New("bad proof")}

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Send())
	err := Validate(context.Background(), deps, proof)
	if !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("Validate = %v, want ErrInvalidProof", err)
	}
}

func TestValidate_InputNotInTreeRejected(t *testing.T) {
	deps, _, _, _ := baseDeps()
	in := elementFromByte(1)

	proof := types.NewUtxoProof(nil, []types.Element{in}, nil, types.Element{}, types.Send())
	err := Validate(context.Background(), deps, proof)
	if !errors.Is(err, ErrTxnInputCommitmentsNotInTree) {
		t.Fatalf("Validate = %v, want ErrTxnInputCommitmentsNotInTree", err)
	}
}

func TestValidate_InputPresentPasses(t *testing.T) {
	deps, tree, _, _ := baseDeps()
	in := elementFromByte(1)
	tree.present[in] = true

	proof := types.NewUtxoProof(nil, []types.Element{in}, nil, types.Element{}, types.Send())
	if err := Validate(context.Background(), deps, proof); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
}

func TestValidate_OutputAlreadyInTreeRejected(t *testing.T) {
	deps, tree, _, _ := baseDeps()
	out := elementFromByte(2)
	tree.present[out] = true

	proof := types.NewUtxoProof(nil, nil, []types.Element{out}, types.Element{}, types.Send())
	err := Validate(context.Background(), deps, proof)
	if !errors.Is(err, ErrTxnOutputCommitmentsExist) {
		t.Fatalf("Validate = %v, want ErrTxnOutputCommitmentsExist", err)
	}
}

func TestValidate_OutputExistedRecentlyRejected(t *testing.T) {
	deps, _, history, _ := baseDeps()
	out := elementFromByte(3)
	firstBlock := uint64(5)
	history.history[out] = FirstInsertedBlock{FirstInsertedBlock: &firstBlock}

	proof := types.NewUtxoProof(nil, nil, []types.Element{out}, types.Element{}, types.Send())
	err := Validate(context.Background(), deps, proof)
	if !errors.Is(err, ErrTxnOutputCommitmentsExistedRecently) {
		t.Fatalf("Validate = %v, want ErrTxnOutputCommitmentsExistedRecently", err)
	}
}

func TestValidate_OutputNeverSeenPasses(t *testing.T) {
	deps, _, _, _ := baseDeps()
	out := elementFromByte(4)

	proof := types.NewUtxoProof(nil, nil, []types.Element{out}, types.Element{}, types.Send())
	if err := Validate(context.Background(), deps, proof); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
}

func TestValidate_MintNotInContractRejected(t *testing.T) {
	deps, _, _, _ := baseDeps()
	mintHash := elementFromByte(9)

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Mint(mintHash, 100, 1))
	err := Validate(context.Background(), deps, proof)
	if !errors.Is(err, ErrMintIsNotInTheContract) {
		t.Fatalf("Validate = %v, want ErrMintIsNotInTheContract", err)
	}
}

func TestValidate_MintAmountMismatchRejected(t *testing.T) {
	deps, _, _, l1 := baseDeps()
	mintHash := elementFromByte(9)
	l1.regs[mintHash] = MintRegistration{Amount: 999, NoteKind: 1}

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Mint(mintHash, 100, 1))
	err := Validate(context.Background(), deps, proof)
	if !errors.Is(err, ErrMintInContractIsDifferent) {
		t.Fatalf("Validate = %v, want ErrMintInContractIsDifferent", err)
	}
}

func TestValidate_MintMatchingContractPasses(t *testing.T) {
	deps, _, _, l1 := baseDeps()
	mintHash := elementFromByte(9)
	l1.regs[mintHash] = MintRegistration{Amount: 100, NoteKind: 1}

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Mint(mintHash, 100, 1))
	if err := Validate(context.Background(), deps, proof); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
}

func TestValidate_MintQueriesSafeHeightNotTip(t *testing.T) {
	deps, _, _, l1 := baseDeps()
	l1.height = 100
	deps.SafeEthHeightOffset = 6
	mintHash := elementFromByte(9)
	l1.regs[mintHash] = MintRegistration{Amount: 100, NoteKind: 1}

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Mint(mintHash, 100, 1))
	if err := Validate(context.Background(), deps, proof); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
	if l1.queriedHeight != 94 {
		t.Errorf("GetMintAt queried height %d, want tip-offset 94", l1.queriedHeight)
	}
}

func TestValidate_L1BlockNumberFailureWrapsSentinel(t *testing.T) {
	deps, _, _, l1 := baseDeps()
	l1.blockNumErr = errors.New("dial tcp: connection refused")

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Mint(elementFromByte(9), 100, 1))
	err := Validate(context.Background(), deps, proof)
	if !errors.Is(err, ErrFailedToGetEthBlockNumber) {
		t.Fatalf("Validate = %v, want ErrFailedToGetEthBlockNumber", err)
	}
}

func TestValidate_ReportsL1SafeHeightMetricOnMintCheck(t *testing.T) {
	deps, _, _, l1 := baseDeps()
	m := metrics.New()
	deps.Metrics = m
	l1.height = 100
	deps.SafeEthHeightOffset = 6
	mintHash := elementFromByte(9)
	l1.regs[mintHash] = MintRegistration{Amount: 100, NoteKind: 1}

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Mint(mintHash, 100, 1))
	if err := Validate(context.Background(), deps, proof); err != nil {
		t.Fatalf("Validate = %v, want nil", err)
	}
	if got := testutil.ToFloat64(m.L1SafeHeight); got != 94 {
		t.Errorf("L1SafeHeight = %v, want 94", got)
	}
}
