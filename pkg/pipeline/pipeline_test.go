// Copyright 2025 Certen Protocol

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SatsBridge/payy/pkg/mempool"
	"github.com/SatsBridge/payy/pkg/metrics"
	"github.com/SatsBridge/payy/pkg/types"
	"github.com/SatsBridge/payy/pkg/validator"
)

type fakeL1Height struct {
	height uint64
	err    error
}

func (f *fakeL1Height) BlockNumber(ctx context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.height, nil
}

type fakeGossiper struct {
	called bool
	err    error
}

func (f *fakeGossiper) Gossip(ctx context.Context, proof *types.UtxoProof) error {
	f.called = true
	return f.err
}

func testProof() *types.UtxoProof {
	return types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Send())
}

func TestSubmitAndWait_SucceedsAndResolvesViaMempool(t *testing.T) {
	pool := mempool.New()
	gossip := &fakeGossiper{}
	p := &Pipeline{
		Validate: func(ctx context.Context, proof *types.UtxoProof) error { return nil },
		L1:       &fakeL1Height{},
		Gossip:   gossip,
		Mempool:  pool,
	}

	proof := testProof()
	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		result, err := p.SubmitAndWait(context.Background(), proof)
		resultCh <- result
		errCh <- err
	}()

	// Wait for admission, then simulate block inclusion.
	time.Sleep(20 * time.Millisecond)
	pool.NotifyIncluded(proof.Hash(), 7, types.Element{})

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("SubmitAndWait error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("SubmitAndWait did not return")
	}
	result := <-resultCh
	if result.Height != 7 {
		t.Errorf("Height = %d, want 7", result.Height)
	}
	if result.TxnHash != proof.Hash() {
		t.Errorf("TxnHash mismatch")
	}
	if !gossip.called {
		t.Errorf("expected Gossip to be called before mempool handoff")
	}
}

func TestSubmitAndWait_NonRetryableValidationErrorReturnsImmediately(t *testing.T) {
	wantErr := errors.New("boom")
	p := &Pipeline{
		Validate: func(ctx context.Context, proof *types.UtxoProof) error { return wantErr },
		L1:       &fakeL1Height{},
		Gossip:   &fakeGossiper{},
		Mempool:  mempool.New(),
	}

	_, err := p.SubmitAndWait(context.Background(), testProof())
	if !errors.Is(err, wantErr) {
		t.Fatalf("SubmitAndWait error = %v, want %v", err, wantErr)
	}
}

func TestSubmitAndWait_CancelledContextDuringRetrySleepReturnsCtxErr(t *testing.T) {
	p := &Pipeline{
		Validate:            func(ctx context.Context, proof *types.UtxoProof) error { return validator.ErrMintIsNotInTheContract },
		L1:                  &fakeL1Height{height: 100},
		Gossip:              &fakeGossiper{},
		Mempool:             mempool.New(),
		SafeEthHeightOffset: 6,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := p.SubmitAndWait(ctx, testProof())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("SubmitAndWait error = %v, want context.DeadlineExceeded", err)
	}
}

func TestSubmitAndWait_GossipFailureAbortsBeforeMempool(t *testing.T) {
	gossipErr := errors.New("peer unreachable")
	p := &Pipeline{
		Validate: func(ctx context.Context, proof *types.UtxoProof) error { return nil },
		L1:       &fakeL1Height{},
		Gossip:   &fakeGossiper{err: gossipErr},
		Mempool:  mempool.New(),
	}

	_, err := p.SubmitAndWait(context.Background(), testProof())
	if !errors.Is(err, gossipErr) {
		t.Fatalf("SubmitAndWait error = %v, want wrapped %v", err, gossipErr)
	}
}

func TestSubmitAndWait_L1FailureDuringRetryWrapsSentinel(t *testing.T) {
	dialErr := errors.New("dial tcp: connection refused")
	p := &Pipeline{
		Validate:            func(ctx context.Context, proof *types.UtxoProof) error { return validator.ErrMintIsNotInTheContract },
		L1:                  &fakeL1Height{err: dialErr},
		Gossip:              &fakeGossiper{},
		Mempool:             mempool.New(),
		SafeEthHeightOffset: 6,
	}

	_, err := p.SubmitAndWait(context.Background(), testProof())
	if !errors.Is(err, validator.ErrFailedToGetEthBlockNumber) {
		t.Fatalf("SubmitAndWait error = %v, want ErrFailedToGetEthBlockNumber", err)
	}
}

func TestSubmitAndWait_ReportsMetricsOnAdmitAndReject(t *testing.T) {
	m := metrics.New()

	rejected := &Pipeline{
		Validate: func(ctx context.Context, proof *types.UtxoProof) error { return errors.New("boom") },
		L1:       &fakeL1Height{},
		Gossip:   &fakeGossiper{},
		Mempool:  mempool.New(),
		Metrics:  m,
	}
	if _, err := rejected.SubmitAndWait(context.Background(), testProof()); err == nil {
		t.Fatalf("expected rejection error")
	}
	if got := testutil.ToFloat64(m.TxnsRejected.WithLabelValues("validation")); got != 1 {
		t.Errorf("TxnsRejected{reason=validation} = %v, want 1", got)
	}

	pool := mempool.New()
	admitted := &Pipeline{
		Validate: func(ctx context.Context, proof *types.UtxoProof) error { return nil },
		L1:       &fakeL1Height{},
		Gossip:   &fakeGossiper{},
		Mempool:  pool,
		Metrics:  m,
	}
	proof := testProof()
	errCh := make(chan error, 1)
	go func() {
		_, err := admitted.SubmitAndWait(context.Background(), proof)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	pool.NotifyIncluded(proof.Hash(), 1, types.Element{})
	if err := <-errCh; err != nil {
		t.Fatalf("SubmitAndWait error = %v, want nil", err)
	}
	if got := testutil.ToFloat64(m.TxnsAdmitted); got != 1 {
		t.Errorf("TxnsAdmitted = %v, want 1", got)
	}
}
