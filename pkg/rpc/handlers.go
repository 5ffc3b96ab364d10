// Copyright 2025 Certen Protocol

package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/SatsBridge/payy/pkg/blockstore"
	"github.com/SatsBridge/payy/pkg/types"
)

// submitTransactionRequest is POST /transaction's request body.
type submitTransactionRequest struct {
	Proof types.UtxoProof `json:"proof"`
}

// submitTransactionResponse is POST /transaction's success body.
type submitTransactionResponse struct {
	Height   uint64        `json:"height"`
	RootHash types.Element `json:"root_hash"`
	TxnHash  types.Element `json:"txn_hash"`
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, newHTTPError(http.StatusMethodNotAllowed, CodeBadRequest, "bad-request", nil))
		return
	}

	var req submitTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, newHTTPError(http.StatusBadRequest, CodeBadRequest, "bad-request", nil))
		return
	}

	result, err := s.Pipeline.SubmitAndWait(r.Context(), &req.Proof)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submitTransactionResponse{
		Height:   result.Height,
		RootHash: result.RootHash,
		TxnHash:  result.TxnHash,
	})
}

// elementResponse is GET /element/{e}'s success body.
type elementResponse struct {
	Element  types.Element `json:"element"`
	Height   uint64        `json:"height"`
	RootHash types.Element `json:"root_hash"`
	TxnHash  types.Element `json:"txn_hash"`
}

func (s *Server) handleGetElement(w http.ResponseWriter, r *http.Request) {
	hex := strings.TrimPrefix(r.URL.Path, "/element/")
	e, err := types.ElementFromHex(hex)
	if err != nil {
		writeError(w, r, errInvalidElement)
		return
	}

	height, txnHash, rootHash, err := s.findElementTxn(e)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, elementResponse{Element: e, Height: height, RootHash: rootHash, TxnHash: txnHash})
}

// handleListElements handles GET /elements?elements=e1,e2,..., omitting
// any element that is not found rather than erroring the whole request.
func (s *Server) handleListElements(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("elements")
	if raw == "" {
		writeJSON(w, http.StatusOK, []elementResponse{})
		return
	}

	out := make([]elementResponse, 0)
	for _, hex := range strings.Split(raw, ",") {
		e, err := types.ElementFromHex(strings.TrimSpace(hex))
		if err != nil {
			writeError(w, r, errInvalidElement)
			return
		}
		height, txnHash, rootHash, err := s.findElementTxn(e)
		if err != nil {
			continue
		}
		out = append(out, elementResponse{Element: e, Height: height, RootHash: rootHash, TxnHash: txnHash})
	}

	writeJSON(w, http.StatusOK, out)
}

// transactionResponse is GET /transaction/{hash}'s success body.
type transactionResponse struct {
	Txn struct {
		Time   time.Time        `json:"time"`
		Proof  *types.UtxoProof `json:"proof"`
		Height uint64           `json:"height"`
	} `json:"txn"`
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	hex := strings.TrimPrefix(r.URL.Path, "/transaction/")
	txnHash, err := types.ElementFromHex(hex)
	if err != nil {
		writeError(w, r, errInvalidElement)
		return
	}

	latest := s.Blocks.LatestHeight()
	for h := latest; h >= 1; h-- {
		b, found, err := s.Blocks.GetBlock(h)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !found {
			continue
		}
		for _, p := range b.Content.Proofs {
			if p.Hash() == txnHash {
				var resp transactionResponse
				resp.Txn.Time = b.Header.CreatedAt
				resp.Txn.Proof = p
				resp.Txn.Height = b.Header.Height
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}
		if h == 1 {
			break
		}
	}

	writeError(w, r, errTxnNotFound)
}

// listTransactionsResponse is GET /transactions's success body.
type listTransactionsResponse struct {
	Txns   []*types.UtxoProof `json:"txns"`
	Cursor blockstore.Page    `json:"cursor"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor, err := blockstore.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := parseLimit(q.Get("limit"))
	order := parseOrder(q.Get("order"))
	poll := q.Get("poll") == "true"

	if poll {
		s.Blocks.WaitForNext(s.Blocks.Generation(), r.Context().Done())
	}

	blocks, page, err := s.Blocks.ListBlocks(cursor, limit, order)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txns := make([]*types.UtxoProof, 0)
	for _, b := range blocks {
		txns = append(txns, b.Content.Proofs...)
	}

	writeJSON(w, http.StatusOK, listTransactionsResponse{Txns: txns, Cursor: page})
}

// blockResponse is GET /block/{height|hash}'s success body.
type blockResponse struct {
	Block *blockstore.Block `json:"block"`
	Hash  types.Element      `json:"hash"`
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, "/block/")

	var block *blockstore.Block
	var found bool
	var err error

	if height, parseErr := strconv.ParseUint(ref, 10, 64); parseErr == nil {
		block, found, err = s.Blocks.GetBlock(height)
	} else {
		var hash types.Element
		hash, err = types.ElementFromHex(ref)
		if err == nil {
			block, found, err = s.Blocks.GetBlockByHash(hash)
		}
	}

	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, blockstore.ErrBlockNotFound)
		return
	}

	writeJSON(w, http.StatusOK, blockResponse{Block: block, Hash: block.Hash()})
}

// listBlocksResponse is GET /blocks's success body.
type listBlocksResponse struct {
	Blocks []*blockstore.Block `json:"blocks"`
	Cursor blockstore.Page     `json:"cursor"`
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor, err := blockstore.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := parseLimit(q.Get("limit"))
	order := parseOrder(q.Get("order"))
	poll := q.Get("poll") == "true"

	if poll {
		s.Blocks.WaitForNext(s.Blocks.Generation(), r.Context().Done())
	}

	blocks, page, err := s.Blocks.ListBlocks(cursor, limit, order)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listBlocksResponse{Blocks: blocks, Cursor: page})
}

// heightResponse is GET /height's success body.
type heightResponse struct {
	Height   uint64        `json:"height"`
	RootHash types.Element `json:"root_hash"`
}

func (s *Server) handleHeight(w http.ResponseWriter, r *http.Request) {
	height := s.Blocks.LatestHeight()
	var root types.Element
	if height > 0 {
		b, ok, err := s.Blocks.GetBlock(height)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if ok {
			root = b.Content.RootHash
		}
	}
	writeJSON(w, http.StatusOK, heightResponse{Height: height, RootHash: root})
}

func parseLimit(raw string) int {
	if raw == "" {
		return 20
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 20
	}
	return n
}

func parseOrder(raw string) blockstore.Order {
	if raw == string(blockstore.OldestToNewest) {
		return blockstore.OldestToNewest
	}
	return blockstore.NewestToOldest
}
