package stores

import (
	"bytes"
	"context"
	"testing"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	return store
}

// TestSQLiteLifecycle tests initialization, health check and closure.
func TestSQLiteLifecycle(t *testing.T) {
	store := setupTestStore(t)

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestSQLitePutGetDelete covers the basic key lifecycle.
func TestSQLitePutGetDelete(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}

	if err := store.Put(ctx, "a", []byte("one")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Put(ctx, "a", []byte("two")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	v, ok, err := store.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(v, []byte("two")) {
		t.Errorf("value = %q, want two", v)
	}

	removed, err := store.Delete(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	removed, err = store.Delete(ctx, "a")
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if removed {
		t.Error("second delete should report no removal")
	}
}

// TestSQLiteListOrderedWithPrefix verifies ordered prefix listing with limit.
func TestSQLiteListOrderedWithPrefix(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	for _, key := range []string{"inst/c", "inst/a", "inst/b", "__entweave/version"} {
		if err := store.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("put %s failed: %v", key, err)
		}
	}

	entries, err := store.List(ctx, "inst/", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, want := range []string{"inst/a", "inst/b", "inst/c"} {
		if entries[i].Key != want {
			t.Errorf("entry %d = %q, want %q", i, entries[i].Key, want)
		}
	}

	limited, err := store.List(ctx, "inst/", 2)
	if err != nil {
		t.Fatalf("limited list failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d entries, want 2", len(limited))
	}
}
