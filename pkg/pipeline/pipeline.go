// Copyright 2025 Certen Protocol
//
// AdmissionPipeline drives a submitted proof through repeated validation,
// tolerating a bounded window of L1 staleness for mint registrations,
// then gossips and hands off to the mempool. Grounded on pkg/batch and
// pkg/attestation/strategy's sleep-and-recheck retry loops, using
// context.Context for cancellation throughout pkg/ethereum and
// pkg/database's first-argument convention.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SatsBridge/payy/pkg/mempool"
	"github.com/SatsBridge/payy/pkg/metrics"
	"github.com/SatsBridge/payy/pkg/types"
	"github.com/SatsBridge/payy/pkg/validator"
)

// pollPeriod matches L1's expected block time.
const pollPeriod = 6 * time.Second

// Validate is the subset of validator.Validate the pipeline depends on,
// kept as a function value so tests can substitute a stub.
type Validate func(ctx context.Context, proof *types.UtxoProof) error

// L1Height is the subset of l1gateway.Gateway the retry loop reads.
type L1Height interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Gossiper broadcasts an admitted proof to peers before mempool handoff.
type Gossiper interface {
	Gossip(ctx context.Context, proof *types.UtxoProof) error
}

// Mempool is the subset of mempool.Mempool the pipeline writes to.
type Mempool interface {
	AddWait(txnHash types.Element, proof *types.UtxoProof, inputs []types.Element) (<-chan mempool.CompletionResult, error)
	CancelWait(txnHash types.Element, done <-chan mempool.CompletionResult)
}

// Pipeline wires Validate, a gossip sink, an L1 height reader, and the
// mempool together into the submit-and-wait admission flow.
type Pipeline struct {
	Validate            Validate
	L1                  L1Height
	Gossip              Gossiper
	Mempool             Mempool
	SafeEthHeightOffset uint64

	// Metrics is optional; when set, SubmitAndWait reports every admission
	// and rejection outcome.
	Metrics *metrics.Metrics
}

// reject records a rejection reason to Metrics (if set) and returns the
// zero Result alongside err, so every failing return in SubmitAndWait
// reports through the same path.
func (p *Pipeline) reject(reason string, err error) (Result, error) {
	if p.Metrics != nil {
		p.Metrics.TxnsRejected.WithLabelValues(reason).Inc()
	}
	return Result{}, err
}

// Result is the settled outcome of a successful submission.
type Result struct {
	Height   uint64
	RootHash types.Element
	TxnHash  types.Element
}

// SubmitAndWait runs the retry-tolerant validation loop, then gossips the
// proof and blocks on mempool inclusion. Cancelling ctx aborts the poll
// loop and detaches the mempool waiter without leaving a dangling
// unsatisfied one.
func (p *Pipeline) SubmitAndWait(ctx context.Context, proof *types.UtxoProof) (Result, error) {
	var waitStart uint64
	haveWaitStart := false

	for {
		err := p.Validate(ctx, proof)
		if err == nil {
			break
		}

		if errors.Is(err, validator.ErrMintIsNotInTheContract) && p.SafeEthHeightOffset > 0 {
			cur, blockErr := p.L1.BlockNumber(ctx)
			if blockErr != nil {
				return p.reject("l1-unavailable", fmt.Errorf("%w: %v", validator.ErrFailedToGetEthBlockNumber, blockErr))
			}
			if !haveWaitStart {
				waitStart = cur
				haveWaitStart = true
			}
			if cur-waitStart > p.SafeEthHeightOffset {
				return p.reject("mint-not-in-contract", err) // gave up
			}

			select {
			case <-ctx.Done():
				return p.reject("cancelled", ctx.Err())
			case <-time.After(pollPeriod):
			}
			continue
		}

		return p.reject("validation", err)
	}

	if err := p.Gossip.Gossip(ctx, proof); err != nil {
		return p.reject("gossip", fmt.Errorf("pipeline: gossip: %w", err))
	}

	txnHash := proof.Hash()
	done, err := p.Mempool.AddWait(txnHash, proof, proof.InputCommitments)
	if err != nil {
		return p.reject("mempool", fmt.Errorf("pipeline: mempool add_wait: %w", err))
	}

	select {
	case <-ctx.Done():
		p.Mempool.CancelWait(txnHash, done)
		return p.reject("cancelled", ctx.Err())
	case result := <-done:
		switch result.Outcome {
		case mempool.OutcomeIncluded:
			if p.Metrics != nil {
				p.Metrics.TxnsAdmitted.Inc()
			}
			return Result{Height: result.Height, RootHash: result.RootHash, TxnHash: txnHash}, nil
		case mempool.OutcomeRejected:
			return p.reject("rejected-after-admission", fmt.Errorf("pipeline: rejected after admission: %w", result.Err))
		default:
			return p.reject("evicted", fmt.Errorf("pipeline: evicted before inclusion"))
		}
	}
}
