// Copyright 2025 Certen Protocol

package kv

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
)

func TestAdapter_SetGetHasRoundTrip(t *testing.T) {
	a := NewAdapter(dbm.NewMemDB())

	ok, err := a.Has([]byte("k"))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be absent before Set")
	}

	if err := a.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	ok, err = a.Has([]byte("k"))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !ok {
		t.Fatalf("expected key to be present after Set")
	}

	got, err := a.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}

func TestAdapter_GetMissingKeyReturnsNilNoError(t *testing.T) {
	a := NewAdapter(dbm.NewMemDB())
	got, err := a.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}
}

func TestAdapter_IteratorOrdersKeysAscending(t *testing.T) {
	a := NewAdapter(dbm.NewMemDB())
	for _, k := range []string{"b", "a", "c"} {
		if err := a.Set([]byte(k), []byte(k)); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}

	it, err := a.Iterator(nil, nil)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	defer it.Close()

	var got []string
	for ; it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAdapter_NilDBIsInertNotPanicking(t *testing.T) {
	a := NewAdapter(nil)

	if _, err := a.Get([]byte("k")); err != nil {
		t.Errorf("Get on nil db: %v", err)
	}
	if err := a.Set([]byte("k"), []byte("v")); err != nil {
		t.Errorf("Set on nil db: %v", err)
	}
	if ok, err := a.Has([]byte("k")); err != nil || ok {
		t.Errorf("Has on nil db = %v, %v, want false, nil", ok, err)
	}
}
