// Package cache provides the key-value storage used for HTTP response
// caching and for persisting package-index membership answers between runs.
//
// # Backends
//
//   - [FileCache]: one JSON file per key under a directory (CLI default)
//   - [MemoryCache]: process-local map, used in tests and for ephemeral runs
//   - [RedisCache]: shared cache for build farms running several workers
//   - [NullCache]: stores nothing
//
// # Keys
//
// Keys are produced by a [Keyer] so that every component derives the same key
// for the same question. Use [NewScopedKeyer] to isolate several build farms
// sharing one Redis instance.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key-value store with optional expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of 0 means the entry never expires. Implementations are
// safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
