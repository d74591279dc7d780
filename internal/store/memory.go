package store

import (
	"context"
	"sync"
)

// MemoryBackend is a concurrency-safe in-memory Backend with an optional byte quota.
type MemoryBackend struct {
	mu sync.RWMutex

	// key: cache key, value: serialized record
	data map[string]string

	maxBytes int // 0 = unlimited
	used     int
}

// NewMemoryBackend creates a new MemoryBackend.
// If maxBytes is <= 0, the quota is treated as unlimited.
func NewMemoryBackend(maxBytes int) *MemoryBackend {
	return &MemoryBackend{
		data:     make(map[string]string),
		maxBytes: maxBytes,
	}
}

// Get returns the record stored under key.
func (b *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set writes a record and enforces the quota. Key and value bytes both count.
func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delta := len(key) + len(value)
	if old, ok := b.data[key]; ok {
		delta -= len(key) + len(old)
	}
	if b.maxBytes > 0 && b.used+delta > b.maxBytes {
		return ErrQuotaExceeded
	}

	b.data[key] = value
	b.used += delta
	return nil
}

// Delete removes key if present.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.data[key]; ok {
		b.used -= len(key) + len(old)
		delete(b.data, key)
	}
	return nil
}

// Keys lists every stored key in no particular order.
func (b *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Used reports the number of bytes currently counted against the quota.
func (b *MemoryBackend) Used() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.used
}
