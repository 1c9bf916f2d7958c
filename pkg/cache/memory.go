package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the in-process cache when no size is given.
const DefaultMemoryEntries = 1024

// Memory is an in-process LRU store.
type Memory struct {
	entries *lru.Cache[string, []byte]
}

var _ Store = (*Memory)(nil)

// NewMemory creates an LRU store holding at most maxEntries values. A
// non-positive maxEntries selects DefaultMemoryEntries.
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	entries, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: entries}, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.entries.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return value, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.entries.Add(key, value)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}
