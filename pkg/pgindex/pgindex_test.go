// Copyright 2025 Certen Protocol

package pgindex

import "testing"

func TestOpen_RejectsEmptyDSN(t *testing.T) {
	_, err := Open(Config{})
	if err == nil {
		t.Fatalf("expected an error for an empty DSN")
	}
}

// MirrorBlock/ListBlocks/ListTransactions require a live Postgres
// instance to exercise meaningfully (connection pooling, the blocks/
// transactions schema, ON CONFLICT upsert semantics) and are exercised
// against a real database in integration testing instead of here; Index
// is nil-able precisely so a KV-only deployment never depends on this
// package's code paths being reachable in unit tests.
