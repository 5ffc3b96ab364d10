// Copyright 2025 Certen Protocol
//
// BlockStore - append-only log of finalized blocks, keyed by height and by
// hash, plus the element-history index the Validator needs to distinguish
// "never existed" from "existed and was consumed". Grounded on
// pkg/ledger/store.go's KV key layout (big-endian height keys, JSON-encoded
// per-key metadata) and pkg/kvdb/adapter.go's dbm.DB wrapping.

package blockstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/SatsBridge/payy/pkg/types"
)

type store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Has(key []byte) (bool, error)
	Iterator(start, end []byte) (dbm.Iterator, error)
	ReverseIterator(start, end []byte) (dbm.Iterator, error)
}

var (
	keyLatestHeight = []byte("blockstore:latest_height")
	keyBlockByHeightPrefix = []byte("blockstore:block:height:")
	keyHashToHeightPrefix  = []byte("blockstore:block:hash:")
	keyHistoryPrefix       = []byte("blockstore:history:")
)

func heightKey(height uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, height)
	return append(append([]byte{}, keyBlockByHeightPrefix...), b...)
}

func hashKey(hash types.Element) []byte {
	return append(append([]byte{}, keyHashToHeightPrefix...), hash[:]...)
}

func historyKey(e types.Element) []byte {
	return append(append([]byte{}, keyHistoryPrefix...), e[:]...)
}

// ElementHistory distinguishes the three mutually-exclusive states of §8
// invariant 5: never-seen (FirstInsertedBlock == nil), present
// (FirstInsertedBlock set, LastRemovedBlock nil), removed (both set).
type ElementHistory struct {
	FirstInsertedBlock *uint64 `json:"first_inserted_block,omitempty"`
	LastRemovedBlock   *uint64 `json:"last_removed_block,omitempty"`
}

// Store is the append-only block log plus element history index. Heights
// are dense starting at 1; once stored, a block is immutable (enforced by
// AppendBlock rejecting out-of-sequence heights).
type Store struct {
	mu     sync.RWMutex
	kv     store
	latest uint64

	pollMu   sync.Mutex
	pollCond *sync.Cond
	generation uint64
}

// New opens a Store backed by kv, recovering the latest height.
func New(kv store) (*Store, error) {
	s := &Store{kv: kv}
	s.pollCond = sync.NewCond(&s.pollMu)

	raw, err := kv.Get(keyLatestHeight)
	if err != nil {
		return nil, fmt.Errorf("blockstore: load latest height: %w", err)
	}
	if len(raw) == 8 {
		s.latest = binary.BigEndian.Uint64(raw)
	}
	return s, nil
}

// LatestHeight returns the height of the most recently appended block, or 0
// if the store is empty.
func (s *Store) LatestHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// GetBlock fetches the block at height, if any.
func (s *Store) GetBlock(height uint64) (*Block, bool, error) {
	raw, err := s.kv.Get(heightKey(height))
	if err != nil {
		return nil, false, fmt.Errorf("blockstore: get block %d: %w", height, err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, false, fmt.Errorf("blockstore: unmarshal block %d: %w", height, err)
	}
	return &b, true, nil
}

// GetBlockByHash fetches a block by its derived hash.
func (s *Store) GetBlockByHash(hash types.Element) (*Block, bool, error) {
	raw, err := s.kv.Get(hashKey(hash))
	if err != nil {
		return nil, false, fmt.Errorf("blockstore: get block by hash: %w", err)
	}
	if len(raw) != 8 {
		return nil, false, nil
	}
	return s.GetBlock(binary.BigEndian.Uint64(raw))
}

// GetElementHistory returns e's history; a zero-value ElementHistory means
// "never seen".
func (s *Store) GetElementHistory(e types.Element) (ElementHistory, error) {
	raw, err := s.kv.Get(historyKey(e))
	if err != nil {
		return ElementHistory{}, fmt.Errorf("blockstore: get element history: %w", err)
	}
	if len(raw) == 0 {
		return ElementHistory{}, nil
	}
	var h ElementHistory
	if err := json.Unmarshal(raw, &h); err != nil {
		return ElementHistory{}, fmt.Errorf("blockstore: unmarshal element history: %w", err)
	}
	return h, nil
}

// AppendBlock durably stores b, which must be exactly LatestHeight()+1, and
// records element history for every non-padding input (removal) and output
// (first insertion) commitment across b's proofs. Call sites are expected
// to have already applied b to the CommitmentTree and verified the root
// under the same exclusive latch (see pkg/engine).
func (s *Store) AppendBlock(b *Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Header.Height != s.latest+1 {
		return fmt.Errorf("%w: got %d, want %d", ErrNonDenseHeight, b.Header.Height, s.latest+1)
	}

	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("blockstore: marshal block: %w", err)
	}
	if err := s.kv.Set(heightKey(b.Header.Height), raw); err != nil {
		return fmt.Errorf("blockstore: persist block: %w", err)
	}

	hb := make([]byte, 8)
	binary.BigEndian.PutUint64(hb, b.Header.Height)
	if err := s.kv.Set(hashKey(b.Hash()), hb); err != nil {
		return fmt.Errorf("blockstore: persist hash index: %w", err)
	}

	height := b.Header.Height
	for _, p := range b.Content.Proofs {
		for _, e := range p.NonPaddingOutputs() {
			if err := s.recordFirstInserted(e, height); err != nil {
				return err
			}
		}
		for _, e := range p.NonPaddingInputs() {
			if err := s.recordRemoved(e, height); err != nil {
				return err
			}
		}
	}

	if err := s.kv.Set(keyLatestHeight, hb); err != nil {
		return fmt.Errorf("blockstore: persist latest height: %w", err)
	}
	s.latest = height

	s.pollMu.Lock()
	s.generation++
	s.pollCond.Broadcast()
	s.pollMu.Unlock()

	return nil
}

func (s *Store) recordFirstInserted(e types.Element, height uint64) error {
	h, err := s.GetElementHistory(e)
	if err != nil {
		return err
	}
	if h.FirstInsertedBlock == nil {
		h.FirstInsertedBlock = &height
		return s.saveHistory(e, h)
	}
	return nil
}

func (s *Store) recordRemoved(e types.Element, height uint64) error {
	h, err := s.GetElementHistory(e)
	if err != nil {
		return err
	}
	h.LastRemovedBlock = &height
	return s.saveHistory(e, h)
}

func (s *Store) saveHistory(e types.Element, h ElementHistory) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("blockstore: marshal element history: %w", err)
	}
	return s.kv.Set(historyKey(e), raw)
}

// WaitForNext blocks until a new block has been appended since generation
// was observed, or ctx-like cancellation via the done channel fires. It
// returns the generation to pass on the next call. This backs GET
// /transactions and /blocks's poll=true mode, waiting on a sync.Cond that
// AppendBlock broadcasts rather than busy-polling.
func (s *Store) WaitForNext(sinceGeneration uint64, done <-chan struct{}) uint64 {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	for s.generation == sinceGeneration {
		woke := make(chan struct{})
		go func() {
			select {
			case <-done:
				s.pollMu.Lock()
				s.pollCond.Broadcast()
				s.pollMu.Unlock()
			case <-woke:
			}
		}()
		s.pollCond.Wait()
		close(woke)
		select {
		case <-done:
			return s.generation
		default:
		}
	}
	return s.generation
}

// Generation returns the current append generation counter, for callers
// that want to start a WaitForNext loop from "now".
func (s *Store) Generation() uint64 {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	return s.generation
}

// ListBlocks returns up to limit blocks starting at cursor (height 0 means
// "start from the appropriate end" depending on order), along with a Page
// of before/after tokens for bidirectional walking.
func (s *Store) ListBlocks(cursor Cursor, limit int, order Order) ([]*Block, Page, error) {
	if limit <= 0 {
		limit = 20
	}
	latest := s.LatestHeight()
	if latest == 0 {
		return nil, Page{}, nil
	}

	start := cursor.Height
	blocks := make([]*Block, 0, limit)

	if order == OldestToNewest {
		if start == 0 {
			start = 1
		}
		for h := start; h <= latest && len(blocks) < limit; h++ {
			b, ok, err := s.GetBlock(h)
			if err != nil {
				return nil, Page{}, err
			}
			if ok {
				blocks = append(blocks, b)
			}
		}
	} else {
		if start == 0 || start > latest {
			start = latest
		}
		for h := start; h >= 1 && len(blocks) < limit; h-- {
			b, ok, err := s.GetBlock(h)
			if err != nil {
				return nil, Page{}, err
			}
			if ok {
				blocks = append(blocks, b)
			}
			if h == 1 {
				break
			}
		}
	}

	page := Page{}
	if len(blocks) > 0 {
		first := blocks[0].Header.Height
		last := blocks[len(blocks)-1].Header.Height
		page.Before = Cursor{Height: first}.Encode()
		page.After = Cursor{Height: last}.Encode()
	}
	return blocks, page, nil
}
