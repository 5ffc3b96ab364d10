// Copyright 2025 Certen Protocol
//
// Mempool holds admitted proofs pending block inclusion. New component;
// grounded on pkg/proof/attestation.go's single sync.Mutex-guarded map of
// pending entries and pkg/database/repository_consensus.go's documented
// single-writer assumption for LedgerStore.

package mempool

import (
	"fmt"
	"sync"

	"github.com/SatsBridge/payy/pkg/types"
)

// Outcome is the terminal state an add_wait future resolves to.
type Outcome int

const (
	// OutcomeIncluded means the proof's block was applied.
	OutcomeIncluded Outcome = iota
	// OutcomeRejected means the proof was dropped with an error.
	OutcomeRejected
	// OutcomeEvicted is the terminal state for a proof displaced by a
	// colliding input commitment. Mempool never resolves a waiter with it:
	// a colliding submission is refused with ErrAlreadyExists instead.
	OutcomeEvicted
)

// CompletionResult is delivered exactly once on an add_wait entry's
// completion channel: a buffered channel of size 1 gives the delivering
// goroutine a non-blocking send regardless of whether anyone is still
// waiting to receive it.
type CompletionResult struct {
	Outcome  Outcome
	Height   uint64
	RootHash types.Element
	Err      error
}

// ErrAlreadyExists is returned by add/add_wait when a live entry already
// holds one of the submitted proof's non-padding input commitments.
var ErrAlreadyExists = fmt.Errorf("mempool: input commitment already held by a pending entry")

// ErrNotFound is returned when an operation references a txn hash with no
// live entry.
var ErrNotFound = fmt.Errorf("mempool: transaction not found")

type entry struct {
	proof   *types.UtxoProof
	inputs  []types.Element
	waiters []chan CompletionResult
	order   uint64
}

// Mempool is safe for concurrent use; every operation takes the single
// internal lock, matching pkg/proof/attestation.go's pendingAttestations
// guard.
type Mempool struct {
	mu       sync.Mutex
	byHash   map[types.Element]*entry
	byInput  map[types.Element]types.Element // input commitment -> owning txn hash
	sequence uint64
}

// New constructs an empty Mempool.
func New() *Mempool {
	return &Mempool{
		byHash:  make(map[types.Element]*entry),
		byInput: make(map[types.Element]types.Element),
	}
}

// Add inserts proof as a fire-and-forget admission (from peer gossip),
// enforcing the at-most-one-per-input invariant.
func (m *Mempool) Add(txnHash types.Element, proof *types.UtxoProof, inputs []types.Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(txnHash, proof, inputs, nil)
}

// AddWait inserts proof and returns a channel that receives exactly one
// CompletionResult when the txn is included or rejected.
func (m *Mempool) AddWait(txnHash types.Element, proof *types.UtxoProof, inputs []types.Element) (<-chan CompletionResult, error) {
	done := make(chan CompletionResult, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.addLocked(txnHash, proof, inputs, done); err != nil {
		return nil, err
	}
	return done, nil
}

// CancelWait detaches a previously registered add_wait completion channel
// without evicting the underlying entry, implementing §5's cancellation
// rule: dropping the future must not leave a dangling unsatisfied waiter,
// but the proof may still end up gossiped and included.
func (m *Mempool) CancelWait(txnHash types.Element, done <-chan CompletionResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byHash[txnHash]
	if !ok {
		return
	}
	filtered := e.waiters[:0]
	for _, w := range e.waiters {
		if (<-chan CompletionResult)(w) != done {
			filtered = append(filtered, w)
		}
	}
	e.waiters = filtered
}

func (m *Mempool) addLocked(txnHash types.Element, proof *types.UtxoProof, inputs []types.Element, waiter chan CompletionResult) error {
	if existing, ok := m.byHash[txnHash]; ok {
		if waiter != nil {
			existing.waiters = append(existing.waiters, waiter)
		}
		return nil
	}

	for _, in := range inputs {
		if in.IsZero() {
			continue
		}
		if owner, held := m.byInput[in]; held {
			if _, stillLive := m.byHash[owner]; stillLive {
				return ErrAlreadyExists
			}
		}
	}

	e := &entry{proof: proof, inputs: inputs, order: m.sequence}
	m.sequence++
	if waiter != nil {
		e.waiters = append(e.waiters, waiter)
	}
	m.byHash[txnHash] = e
	for _, in := range inputs {
		if !in.IsZero() {
			m.byInput[in] = txnHash
		}
	}
	return nil
}

// Depth reports the number of entries currently held, for the mempool
// depth gauge.
func (m *Mempool) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

// TakeForBlock returns admitted entries in admission order, up to budget
// entries, for a block producer to assemble into a candidate block. It
// does not remove entries; removal happens via NotifyIncluded/NotifyRejected
// once the caller knows the outcome.
func (m *Mempool) TakeForBlock(budget int) []*types.UtxoProof {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]*entry, 0, len(m.byHash))
	for _, e := range m.byHash {
		entries = append(entries, e)
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].order < entries[j-1].order; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	out := make([]*types.UtxoProof, 0, budget)
	for _, e := range entries {
		if len(out) >= budget {
			break
		}
		out = append(out, e.proof)
	}
	return out
}

// NotifyIncluded removes txnHash's entry, frees its input commitments, and
// resolves any add_wait waiters with OutcomeIncluded.
func (m *Mempool) NotifyIncluded(txnHash types.Element, height uint64, rootHash types.Element) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byHash[txnHash]
	if !ok {
		return
	}
	m.removeLocked(txnHash, e)
	m.resolve(e, CompletionResult{Outcome: OutcomeIncluded, Height: height, RootHash: rootHash})
}

// NotifyRejected removes txnHash's entry, frees its inputs, and resolves
// waiters with OutcomeRejected.
func (m *Mempool) NotifyRejected(txnHash types.Element, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byHash[txnHash]
	if !ok {
		return
	}
	m.removeLocked(txnHash, e)
	m.resolve(e, CompletionResult{Outcome: OutcomeRejected, Err: cause})
}

func (m *Mempool) removeLocked(txnHash types.Element, e *entry) {
	delete(m.byHash, txnHash)
	for _, in := range e.inputs {
		if !in.IsZero() {
			if owner, ok := m.byInput[in]; ok && owner == txnHash {
				delete(m.byInput, in)
			}
		}
	}
}

func (m *Mempool) resolve(e *entry, result CompletionResult) {
	for _, w := range e.waiters {
		select {
		case w <- result:
		default:
		}
	}
}
