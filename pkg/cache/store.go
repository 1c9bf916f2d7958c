// Package cache provides the byte stores and request coalescing used by the
// caching repository components. A Store is a flat namespace of keys to byte
// values; implementations cover an in-process LRU and an on-disk store
// shared between processes.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Get when a key has no cached value.
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented cache. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
