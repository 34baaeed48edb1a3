// Package cache provides the key-value store behind geometry memoization.
// The store is injected into the resolver so tests can substitute an
// in-memory implementation for the on-disk default.
package cache

import "context"

// Store is a byte-oriented key-value store. Implementations must be safe for
// concurrent readers; a single writer at a time is assumed (concurrent
// pipeline runs against the same store are not supported).
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores the value for key, replacing any existing value.
	Put(ctx context.Context, key string, value []byte) error
}
