package kvstore

import "context"

// Store is the key/value persistence boundary the scheduling core sequences
// calls against. Implementations must be safe for concurrent use; the core
// imposes no mutual exclusion of its own beyond what callers request.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists the keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
