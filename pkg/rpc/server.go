// Copyright 2025 Certen Protocol
//
// Server wires the rollup's RPC facade onto a stdlib http.ServeMux,
// grounded on main.go's router construction: http.NewServeMux() plus
// mux.HandleFunc(...), no third-party router, even though httprouter/
// gorilla sit unused in the module's indirect dependency graph.

package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/SatsBridge/payy/pkg/blockstore"
	"github.com/SatsBridge/payy/pkg/mempool"
	"github.com/SatsBridge/payy/pkg/pipeline"
	"github.com/SatsBridge/payy/pkg/types"
)

var (
	errElementNotFound = errors.New("rpc: element not found")
	errInvalidElement  = errors.New("rpc: invalid element")
	errTxnNotFound     = errors.New("rpc: transaction not found")
)

// Server is the rollup's JSON-over-HTTP facade.
type Server struct {
	Pipeline *pipeline.Pipeline
	Blocks   *blockstore.Store
	Mempool  *mempool.Mempool

	mux *http.ServeMux
}

// NewServer builds a Server and registers every endpoint the facade exposes.
func NewServer(p *pipeline.Pipeline, blocks *blockstore.Store, pool *mempool.Mempool) *Server {
	s := &Server{Pipeline: p, Blocks: blocks, Mempool: pool, mux: http.NewServeMux()}
	s.mux.HandleFunc("/transaction", s.handleSubmitTransaction)
	s.mux.HandleFunc("/transaction/", s.handleGetTransaction)
	s.mux.HandleFunc("/transactions", s.handleListTransactions)
	s.mux.HandleFunc("/element/", s.handleGetElement)
	s.mux.HandleFunc("/elements", s.handleListElements)
	s.mux.HandleFunc("/block/", s.handleGetBlock)
	s.mux.HandleFunc("/blocks", s.handleListBlocks)
	s.mux.HandleFunc("/height", s.handleHeight)
	return s
}

// ServeHTTP satisfies http.Handler, attaching a request id for log
// correlation the way main.go tags requests/attestations with a
// google/uuid identifier.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
	s.mux.ServeHTTP(w, r.WithContext(ctx))
}

type requestIDKey struct{}

// requestIDFromContext recovers the per-request id ServeHTTP attached, for
// handlers that want to correlate logged errors with a client response.
func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// findElementTxn locates the block and proof that first inserted e,
// backing GET /element/{e} and GET /elements. It reports only the first
// insertion; whether e was later consumed is not reported.
func (s *Server) findElementTxn(e types.Element) (height uint64, txnHash types.Element, rootHash types.Element, err error) {
	hist, err := s.Blocks.GetElementHistory(e)
	if err != nil {
		return 0, types.Zero, types.Zero, fmt.Errorf("rpc: element history: %w", err)
	}
	if hist.FirstInsertedBlock == nil {
		return 0, types.Zero, types.Zero, errElementNotFound
	}

	block, ok, err := s.Blocks.GetBlock(*hist.FirstInsertedBlock)
	if err != nil {
		return 0, types.Zero, types.Zero, fmt.Errorf("rpc: get block: %w", err)
	}
	if !ok {
		return 0, types.Zero, types.Zero, errElementNotFound
	}

	for _, p := range block.Content.Proofs {
		for _, out := range p.NonPaddingOutputs() {
			if out == e {
				return block.Header.Height, p.Hash(), block.Content.RootHash, nil
			}
		}
	}
	return 0, types.Zero, types.Zero, errElementNotFound
}
