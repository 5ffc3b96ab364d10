// Copyright 2025 Certen Protocol
//
// HTTP error envelope and the sentinel-error-to-{code,reason} mapping
// table, generalizing pkg/server/ledger_handlers.go's per-handler
// http.Error(w, `{"error": "..."}`, status) calls into one mapping
// function.

package rpc

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/SatsBridge/payy/pkg/blockstore"
	"github.com/SatsBridge/payy/pkg/mempool"
	"github.com/SatsBridge/payy/pkg/proofbackend"
	"github.com/SatsBridge/payy/pkg/validator"
)

// Code is the coarse HTTP-facing error classification returned to clients.
type Code string

const (
	CodeBadRequest         Code = "bad-request"
	CodeNotFound           Code = "not-found"
	CodeAlreadyExists      Code = "already-exists"
	CodeFailedPrecondition Code = "failed-precondition"
	CodeInternal           Code = "internal"
)

// errorBody is the wire shape `{error: {code, reason, data?}}`.
type errorBody struct {
	Error struct {
		Code   Code        `json:"code"`
		Reason string      `json:"reason"`
		Data   interface{} `json:"data,omitempty"`
	} `json:"error"`
}

// httpError carries everything writeError needs to render the JSON
// error envelope for one failure.
type httpError struct {
	status int
	code   Code
	reason string
	data   interface{}
}

func (e *httpError) Error() string { return e.reason }

func newHTTPError(status int, code Code, reason string, data interface{}) *httpError {
	return &httpError{status: status, code: code, reason: reason, data: data}
}

// classify maps a returned error to its HTTP status and {code,reason}
// pair, following a static table rather than duplicating the mapping per
// handler.
func classify(err error) *httpError {
	if err == nil {
		return nil
	}

	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, proofbackend.ErrInvalidProof), errors.Is(err, validator.ErrInvalidProof):
		return newHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid-proof", nil)
	case errors.Is(err, validator.ErrInvalidElementSize):
		return newHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid-element-size", nil)
	case errors.Is(err, validator.ErrTxnInputCommitmentsNotInTree):
		return newHTTPError(http.StatusBadRequest, CodeFailedPrecondition, "txn-input-commitments-not-in-tree", nil)
	case errors.Is(err, validator.ErrTxnOutputCommitmentsExist):
		return newHTTPError(http.StatusConflict, CodeFailedPrecondition, "output-commitments-exists", nil)
	case errors.Is(err, validator.ErrTxnOutputCommitmentsExistedRecently):
		return newHTTPError(http.StatusConflict, CodeFailedPrecondition, "output-commitments-existed-recently", nil)
	case errors.Is(err, validator.ErrMintIsNotInTheContract):
		return newHTTPError(http.StatusConflict, CodeFailedPrecondition, "mint-not-in-contract", nil)
	case errors.Is(err, validator.ErrMintInContractIsDifferent):
		return newHTTPError(http.StatusConflict, CodeFailedPrecondition, "mint-in-contract-is-different", nil)
	case errors.Is(err, mempool.ErrAlreadyExists):
		return newHTTPError(http.StatusNotFound, CodeNotFound, "not-found", nil)
	case errors.Is(err, mempool.ErrNotFound):
		return newHTTPError(http.StatusNotFound, CodeNotFound, "not-found", nil)
	case errors.Is(err, blockstore.ErrBlockNotFound):
		return newHTTPError(http.StatusNotFound, CodeNotFound, "block-not-found", nil)
	case errors.Is(err, blockstore.ErrInvalidCursor):
		return newHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid-cursor", nil)
	case errors.Is(err, errElementNotFound):
		return newHTTPError(http.StatusNotFound, CodeNotFound, "element-not-found", nil)
	case errors.Is(err, errTxnNotFound):
		return newHTTPError(http.StatusNotFound, CodeNotFound, "txn-not-found", nil)
	case errors.Is(err, errInvalidElement):
		return newHTTPError(http.StatusBadRequest, CodeBadRequest, "invalid-element", nil)
	case errors.Is(err, validator.ErrFailedToGetEthBlockNumber):
		return newHTTPError(http.StatusInternalServerError, CodeInternal, "failed-to-get-eth-block-number", nil)
	default:
		return newHTTPError(http.StatusInternalServerError, CodeInternal, "internal", nil)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	he := classify(err)
	if he.status >= http.StatusInternalServerError {
		log.Printf("rpc: [req=%s] internal error: %v", requestIDFromContext(r.Context()), err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	var body errorBody
	body.Error.Code = he.code
	body.Error.Reason = he.reason
	body.Error.Data = he.data
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
