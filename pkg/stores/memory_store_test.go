package stores

import (
	"bytes"
	"context"
	"testing"
)

// TestMemoryStoreRoundTrip covers put/get/delete and value isolation.
func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	payload := []byte("hello")
	if err := store.Put(ctx, "k", payload); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	payload[0] = 'X' // caller mutation must not leak into the store

	v, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(v, []byte("hello")) {
		t.Errorf("value = %q, want hello", v)
	}

	removed, err := store.Delete(ctx, "k")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("key should be gone")
	}
}

// TestMemoryStoreListOrdered verifies ascending order and prefix filtering.
func TestMemoryStoreListOrdered(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"b", "a", "c", "zz/x"} {
		if err := store.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	entries, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{"a", "b", "c", "zz/x"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i].Key != want[i] {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Key, want[i])
		}
	}

	limited, err := store.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("limited list failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Key != "a" || limited[1].Key != "b" {
		t.Errorf("limited = %v", limited)
	}
}
