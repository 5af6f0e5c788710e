// Package store defines the generation-partitioned storage abstraction used
// by shellcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Put for a (generation, key)
// pair (no prepended/appended metadata, no re-encoding, no mutation). If a
// store performs internal transforms (e.g., compression), they MUST be fully
// reversed so that the bytes returned by Get are identical to the bytes
// provided to Put.
//
// A generation name is the sole partition key; entries are keyed by request
// path beneath it. External code MUST NOT write values under a manager's
// generation. Foreign writes may be treated as corruption by strict wire
// validation and deleted.
package store

import "context"

// Store is a minimal partitioned byte store. Must be safe for concurrent
// use. Per-key reads and writes are atomic; there is no cross-key
// transaction, so concurrent writers to the same key race and the last
// write wins.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, generation, key string) ([]byte, bool, error)

	// Put stores value under the generation. Whole-payload: the value is
	// visible in full or not at all.
	Put(ctx context.Context, generation, key string, value []byte) error

	// Delete removes a key (best-effort).
	Delete(ctx context.Context, generation, key string) error

	// Generations lists every generation currently holding entries.
	Generations(ctx context.Context) ([]string, error)

	// Drop removes a generation and all of its entries.
	Drop(ctx context.Context, generation string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
