// Package stores provides the persistence collaborators for Entweave.
//
// # Overview
//
// The runtime binds each entity definition to a Store: an ordered key-value
// namespace with Get, Put, Delete and prefix List. The core assumes atomicity
// per key and nothing more; there are no multi-key transactions. Reserved
// keys (the "__entweave/" prefix) hold serialized definition metadata and the
// applied migration version; every other key is an instance keyed by its
// identity.
//
// # Implementations
//
//   - MemoryStore: in-process map with ordered listing, for tests and
//     ephemeral contexts.
//   - SQLiteStore: durable single-file store using modernc.org/sqlite with
//     WAL mode. Its own schema is managed by golang-migrate with embedded
//     SQL migrations (distinct from definition-level migrations, which the
//     runtime applies).
//
// # Usage Example
//
//	store, err := stores.NewSQLiteStore(stores.Config{Path: "entweave.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := store.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Put(ctx, "acme", []byte(`{"name":"Acme"}`))
package stores
