// Copyright 2025 Certen Protocol

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/SatsBridge/payy/pkg/blockstore"
	"github.com/SatsBridge/payy/pkg/kv"
	"github.com/SatsBridge/payy/pkg/mempool"
	"github.com/SatsBridge/payy/pkg/pipeline"
	"github.com/SatsBridge/payy/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *blockstore.Store, *mempool.Mempool) {
	t.Helper()
	store := kv.NewAdapter(dbm.NewMemDB())
	blocks, err := blockstore.New(store)
	if err != nil {
		t.Fatalf("blockstore.New: %v", err)
	}
	pool := mempool.New()
	p := &pipeline.Pipeline{
		Validate: func(ctx context.Context, proof *types.UtxoProof) error { return nil },
		L1:       fakeHeight{},
		Gossip:   fakeGossiper{},
		Mempool:  pool,
	}
	return NewServer(p, blocks, pool), blocks, pool
}

type fakeHeight struct{}

func (fakeHeight) BlockNumber(ctx context.Context) (uint64, error) { return 100, nil }

type fakeGossiper struct{}

func (fakeGossiper) Gossip(ctx context.Context, proof *types.UtxoProof) error { return nil }

func TestHandleHeight_ReportsLatestRootHash(t *testing.T) {
	s, blocks, _ := newTestServer(t)

	out := elem(1)
	proof := types.NewUtxoProof(nil, nil, []types.Element{out}, types.Element{}, types.Send())
	b := &blockstore.Block{
		Header:  blockstore.Header{Height: 1, CreatedAt: time.Unix(0, 0)},
		Content: blockstore.Content{Proofs: []*types.UtxoProof{proof}, RootHash: elem(9)},
	}
	if err := blocks.AppendBlock(b); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/height", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp heightResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Height != 1 {
		t.Errorf("Height = %d, want 1", resp.Height)
	}
	if resp.RootHash != elem(9) {
		t.Errorf("RootHash = %s, want %s", resp.RootHash.Hex(), elem(9).Hex())
	}
}

func TestHandleHeight_ZeroWhenNoBlocks(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/height", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var resp heightResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Height != 0 {
		t.Errorf("Height = %d, want 0", resp.Height)
	}
}

func TestHandleGetBlock_ByHeightAndByHash(t *testing.T) {
	s, blocks, _ := newTestServer(t)

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Send())
	b := &blockstore.Block{
		Header:  blockstore.Header{Height: 1, CreatedAt: time.Unix(0, 0)},
		Content: blockstore.Content{Proofs: []*types.UtxoProof{proof}, RootHash: elem(5)},
	}
	if err := blocks.AppendBlock(b); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/block/1", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("by-height status = %d, want 200", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/block/"+b.Hash().Hex(), nil)
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("by-hash status = %d, want 200", rec2.Code)
	}
}

func TestHandleGetBlock_NotFoundReturns404(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/block/999", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSubmitTransaction_SucceedsAndResolvesViaMempool(t *testing.T) {
	s, _, pool := newTestServer(t)

	proof := types.NewUtxoProof(nil, nil, nil, types.Element{}, types.Send())
	body, err := json.Marshal(submitTransactionRequest{Proof: *proof})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resultCh := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/transaction", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		resultCh <- rec
	}()

	time.Sleep(20 * time.Millisecond)
	pool.NotifyIncluded(proof.Hash(), 3, elem(4))

	select {
	case rec := <-resultCh:
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var resp submitTransactionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Height != 3 {
			t.Errorf("Height = %d, want 3", resp.Height)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("request did not complete")
	}
}

func TestHandleSubmitTransaction_MalformedBodyIsBadRequest(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/transaction", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGetElement_InvalidHexIsBadRequest(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/element/not-hex", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleListElements_EmptyQueryReturnsEmptyList(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/elements", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "[]" {
		t.Errorf("body = %q, want []", rec.Body.String())
	}
}

func elem(b byte) types.Element {
	var e types.Element
	e[31] = b
	return e
}
