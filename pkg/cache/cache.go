// Package cache stores processed BGF artifacts.
//
// A [Cache] maps string keys to opaque byte payloads. [FileCache] persists
// each entry as a checksummed msgpack envelope on a billy filesystem and
// replaces entries atomically, so a concurrent reader sees either the old
// artifact or the new one, never a partial write. [NullCache] disables
// caching. Keys come from a [Keyer] so that different decode settings never
// share an artifact.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value store for artifact payloads.
type Cache interface {
	// Get returns the payload for key. A missing, expired or invalid entry
	// is a miss, not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
