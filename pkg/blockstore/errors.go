// Copyright 2025 Certen Protocol

package blockstore

import "errors"

// Sentinel errors, following pkg/ledger/errors.go's pattern of one small
// file of errors.New values.
var (
	ErrBlockNotFound   = errors.New("blockstore: block not found")
	ErrNonDenseHeight  = errors.New("blockstore: height is not exactly latest+1")
	ErrRootMismatch    = errors.New("blockstore: computed root does not match block header")
	ErrInvalidCursor   = errors.New("blockstore: invalid pagination cursor")
)
