// Copyright 2025 Certen Protocol
//
// Cursor - opaque bidirectional pagination tokens for block/transaction
// listings. Grounded on the corpus's universal preference for JSON-encoded
// persisted state (pkg/ledger, pkg/database/types.go) rather than a custom
// binary cursor format.

package blockstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Order controls listing direction.
type Order string

const (
	NewestToOldest Order = "NewestToOldest"
	OldestToNewest Order = "OldestToNewest"
)

// Cursor carries enough state to resume a listing robustly across
// insertions: the height to resume from and a tiebreak for same-height
// entries (txn index within a block).
type Cursor struct {
	Height   uint64 `json:"height"`
	Tiebreak int    `json:"tiebreak"`
}

// Encode serializes the cursor as an opaque base64(JSON) token.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque token produced by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return c, nil
}

// Page is a bidirectional cursor pair returned alongside a listing so
// callers can walk either direction.
type Page struct {
	Before string `json:"before"`
	After  string `json:"after"`
}
