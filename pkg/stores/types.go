package stores

import "context"

// KV is one key-value entry returned by List.
type KV struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Store is the persistence collaborator a runtime context binds to. Keys are
// an ordered namespace; List returns entries in ascending key order.
// Implementations must be atomic per key but are not required to provide
// multi-key transactions.
type Store interface {
	// Get returns the value for key. The bool reports presence; a simple
	// miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. The bool reports whether a value was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// List returns entries whose key starts with prefix, in ascending key
	// order. A limit of 0 means no limit.
	List(ctx context.Context, prefix string, limit int) ([]KV, error)

	// Close releases the store's resources.
	Close() error
}
