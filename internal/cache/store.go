// internal/cache/store.go
//
// CacheStore contract.
//
// Context
// -------
// The store is plain key/value storage with a computed-at timestamp per
// entry.  It knows nothing about schedules or metrics.  Writers always
// overwrite; no write depends on a prior read, so concurrent writers for
// the same key are safe and the last one wins.
//
// Two backends ship with the service:
//
//   - MemoryStore – sync.Map, single process, default.
//   - RedisStore  – go-redis v9, values wrapped in a msgpack envelope.
//
// Notes
// -----
// • Every key and prefix is validated to be hotel scoped before it
//   touches a backend.
// • Oxford commas, two spaces after periods.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get on a miss.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is one stored value.
type Entry struct {
	Key        Key
	Value      []byte
	ComputedAt time.Time
}

// Store is the CacheStore.
type Store interface {
	// Put overwrites the entry at key.
	Put(ctx context.Context, key Key, value []byte, computedAt time.Time) error

	// Get returns the entry at key or ErrNotFound.
	Get(ctx context.Context, key Key) (Entry, error)

	// Scan returns every entry under prefix, sorted by key.
	Scan(ctx context.Context, prefix Prefix) ([]Entry, error)

	// Clear removes every entry in ns across all hotels and reports how
	// many were removed.
	Clear(ctx context.Context, ns Namespace) (int, error)
}
