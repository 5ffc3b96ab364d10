// Copyright 2025 Certen Protocol
//
// CommitmentTree - a persistent, append-only incremental Merkle tree over
// note commitments. Grounded on pkg/merkle/tree.go's hashPair construction
// (SHA-256(left||right)) and pkg/ledger/store.go's KV-backed, JSON-encoded
// metadata layout, adapted from a batch-rebuilt tree into an incremental
// append-only one: pkg/merkle/tree.go builds a whole tree from a leaf
// slice on every batch, while this tree never rebuilds — it only grows.

package merkletree

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/SatsBridge/payy/pkg/types"
)

// DefaultDepth supports up to 2^32 commitments, comfortably beyond any
// plausible rollup lifetime while keeping root computation cheap.
const DefaultDepth = 32

// Sentinel errors, following pkg/merkle/tree.go's convention of a
// dedicated var block of wrapped sentinel errors.
var (
	ErrAlreadyExists = errors.New("merkletree: element already exists")
	ErrTreeFull      = errors.New("merkletree: tree capacity exhausted")
)

type kv interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Has(key []byte) (bool, error)
}

var (
	keyMeta       = []byte("committree:meta")
	keyElemPrefix = []byte("committree:elem:")
	keyFilledPrf  = []byte("committree:filled:")
)

func elemKey(e types.Element) []byte {
	return append(append([]byte{}, keyElemPrefix...), e[:]...)
}

func filledKey(level int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(level))
	return append(append([]byte{}, keyFilledPrf...), b...)
}

// meta is the tree's root-level persisted state.
type meta struct {
	NextIndex uint64        `json:"next_index"`
	Root      types.Element `json:"root"`
}

// elemRecord is the per-element side index entry.
type elemRecord struct {
	Index     uint64 `json:"index"`
	InsertedIn uint64 `json:"inserted_in"`
}

// zeroHashes[i] is the root of an empty subtree of height i.
var zeroHashes = computeZeroHashes(DefaultDepth)

func computeZeroHashes(depth int) [][32]byte {
	hashes := make([][32]byte, depth+1)
	hashes[0] = sha256.Sum256(types.Zero.Bytes())
	for i := 1; i <= depth; i++ {
		hashes[i] = hashPair(hashes[i-1], hashes[i-1])
	}
	return hashes
}

func hashPair(left, right [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return sha256.Sum256(buf[:])
}

// Tree is a persistent incremental Merkle tree guarded by a reader-writer
// latch: readers (Contains/Get/RootHash) run concurrently with each other,
// writers (InsertBatch) are exclusive.
type Tree struct {
	mu    sync.RWMutex
	store kv
	depth int

	nextIndex uint64
	root      types.Element
	filled    [][32]byte // filled[level] = hash of the rightmost filled subtree at that level
}

// New opens (or initializes) a CommitmentTree backed by store.
func New(store kv) (*Tree, error) {
	t := &Tree{store: store, depth: DefaultDepth}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) load() error {
	raw, err := t.store.Get(keyMeta)
	if err != nil {
		return fmt.Errorf("merkletree: load meta: %w", err)
	}
	t.filled = make([][32]byte, t.depth)
	for i := 0; i < t.depth; i++ {
		t.filled[i] = zeroHashes[i]
	}

	if len(raw) == 0 {
		t.nextIndex = 0
		t.root = zeroElement(zeroHashes[t.depth])
		return nil
	}

	var m meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("merkletree: unmarshal meta: %w", err)
	}
	t.nextIndex = m.NextIndex
	t.root = m.Root

	for i := 0; i < t.depth; i++ {
		fv, err := t.store.Get(filledKey(i))
		if err != nil {
			return fmt.Errorf("merkletree: load filled[%d]: %w", i, err)
		}
		if len(fv) == 32 {
			copy(t.filled[i][:], fv)
		}
	}
	return nil
}

// zeroElement converts a tree hash into the Element exposed as the root,
// clearing the top three bits so the value stays below types.Modulus.
func zeroElement(h [32]byte) types.Element {
	var e types.Element
	copy(e[:], h[:])
	e[0] &= 0x1f
	return e
}

// ContainsElement reports whether e is present in the tree. O(log N) via a
// single KV lookup into the element side-index.
func (t *Tree) ContainsElement(e types.Element) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.store.Has(elemKey(e))
}

// ElementInfo is returned by Get for an element present in the tree.
type ElementInfo struct {
	InsertedIn uint64
}

// Get returns the block height at which e was inserted, or ok=false if e
// was never inserted. ContainsElement(e) is true exactly when Get(e)
// returns ok=true.
func (t *Tree) Get(e types.Element) (info ElementInfo, ok bool, err error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	raw, err := t.store.Get(elemKey(e))
	if err != nil {
		return ElementInfo{}, false, fmt.Errorf("merkletree: get element: %w", err)
	}
	if len(raw) == 0 {
		return ElementInfo{}, false, nil
	}
	var rec elemRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ElementInfo{}, false, fmt.Errorf("merkletree: unmarshal element record: %w", err)
	}
	return ElementInfo{InsertedIn: rec.InsertedIn}, true, nil
}

// RootHash returns the tree's current root.
func (t *Tree) RootHash() types.Element {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Size returns the number of leaves inserted so far, for the tree size
// gauge.
func (t *Tree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextIndex
}

// Snapshot captures the fields a single validation call needs to read at a
// consistent point in time: the root and a contains/get view. Because Tree
// only ever grows and never mutates existing entries, reads through the
// live Tree under RLock already observe a consistent snapshot for the
// lifetime of the call — Snapshot exists so Validator has an explicit,
// narrow dependency instead of the full Tree.
type Snapshot struct {
	tree *Tree
	root types.Element
}

// NewSnapshot takes a consistent snapshot of the tree's root for use by one
// validation attempt.
func (t *Tree) NewSnapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{tree: t, root: t.root}
}

// RootHash returns the root observed at snapshot time.
func (s Snapshot) RootHash() types.Element { return s.root }

// ContainsElement delegates to the underlying tree (safe: inserts only add,
// never remove or mutate, so this cannot observe a torn state).
func (s Snapshot) ContainsElement(e types.Element) (bool, error) {
	return s.tree.ContainsElement(e)
}

// InsertBatch atomically inserts elements (already in canonical order:
// proof-order within a txn, txn-order within a block) at block height
// height. Rejects (without partial effect) if any element already exists.
func (t *Tree) InsertBatch(elements []types.Element, height uint64) (types.Element, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if uint64(len(elements)) > (uint64(1)<<uint(t.depth))-t.nextIndex {
		return types.Element{}, ErrTreeFull
	}

	// Pre-check: atomicity requires no partial insert on a duplicate.
	for _, e := range elements {
		exists, err := t.store.Has(elemKey(e))
		if err != nil {
			return types.Element{}, fmt.Errorf("merkletree: pre-check element: %w", err)
		}
		if exists {
			return types.Element{}, fmt.Errorf("%w: %s", ErrAlreadyExists, e.Hex())
		}
	}

	for _, e := range elements {
		if err := t.insertOne(e, height); err != nil {
			return types.Element{}, err
		}
	}

	if err := t.persistMeta(); err != nil {
		return types.Element{}, err
	}

	return t.root, nil
}

// insertOne appends a single leaf using the standard incremental-Merkle-tree
// update: walk up from the leaf, updating the filled-subtree hash at each
// level the new leaf completes, using precomputed zero hashes for the
// as-yet-empty sibling subtrees above it.
func (t *Tree) insertOne(e types.Element, height uint64) error {
	index := t.nextIndex
	leafHash := sha256.Sum256(e.Bytes())

	current := leafHash
	idx := index
	for level := 0; level < t.depth; level++ {
		if idx%2 == 0 {
			// current is a left child; its right sibling is still empty.
			t.filled[level] = current
			current = hashPair(current, zeroHashes[level])
		} else {
			// current is a right child; combine with the already-filled left.
			current = hashPair(t.filled[level], current)
		}
		idx /= 2
	}
	t.root = zeroElement(current)
	t.nextIndex++

	rec := elemRecord{Index: index, InsertedIn: height}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("merkletree: marshal element record: %w", err)
	}
	if err := t.store.Set(elemKey(e), raw); err != nil {
		return fmt.Errorf("merkletree: persist element: %w", err)
	}
	return nil
}

func (t *Tree) persistMeta() error {
	m := meta{NextIndex: t.nextIndex, Root: t.root}
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("merkletree: marshal meta: %w", err)
	}
	if err := t.store.Set(keyMeta, raw); err != nil {
		return fmt.Errorf("merkletree: persist meta: %w", err)
	}
	for i := 0; i < t.depth; i++ {
		if err := t.store.Set(filledKey(i), t.filled[i][:]); err != nil {
			return fmt.Errorf("merkletree: persist filled[%d]: %w", i, err)
		}
	}
	return nil
}
