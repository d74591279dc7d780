package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	DefaultCapacity = 10
	DefaultTTL      = 10 * time.Minute
)

// Entry is a cached payload together with the time the remote fetch that
// produced it succeeded. CreatedAt is never refreshed by reads.
type Entry[T any] struct {
	Key       string
	Payload   T
	CreatedAt time.Time
}

// record is the persisted form of an Entry.
type record[T any] struct {
	Key       string `json:"key"`
	CreatedAt int64  `json:"createdAt"` // ms since epoch
	Payload   T      `json:"payload"`
}

// Options controls construction of a CacheStore.
type Options struct {
	Capacity int           // max entries, defaults to DefaultCapacity
	TTL      time.Duration // freshness window, defaults to DefaultTTL

	// KeyPrefix limits the store to backend keys with this prefix.
	// Records outside the namespace are never read, counted or evicted.
	KeyPrefix string
}

// CacheStore is a capacity-bounded TTL cache over a Backend. Eviction is
// least-recently-created: the oldest CreatedAt goes first, ties broken by key.
//
// All operations are serialized behind a single mutex.
type CacheStore[T any] struct {
	mu sync.Mutex

	backend  Backend
	capacity int
	ttl      time.Duration
	prefix   string

	// key -> CreatedAt of every entry believed to be in the backend
	created map[string]time.Time
}

// NewCacheStore creates a CacheStore and rebuilds its index from whatever the
// backend already holds. Corrupt records found during the scan are removed,
// and the capacity bound is enforced before returning.
func NewCacheStore[T any](ctx context.Context, backend Backend, opts Options) (*CacheStore[T], error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	s := &CacheStore[T]{
		backend:  backend,
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		prefix:   opts.KeyPrefix,
		created:  make(map[string]time.Time),
	}

	if err := s.rebuild(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CacheStore[T]) rebuild(ctx context.Context) error {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list cached keys: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if !strings.HasPrefix(key, s.prefix) {
			continue
		}
		if e, ok := s.load(ctx, key); ok {
			s.created[key] = e.CreatedAt
		}
	}

	s.trimTo(ctx, s.capacity)
	return nil
}

// TTL returns the freshness window.
func (s *CacheStore[T]) TTL() time.Duration {
	return s.ttl
}

// Capacity returns the maximum number of entries.
func (s *CacheStore[T]) Capacity() int {
	return s.capacity
}

// Fresh reports whether e is younger than the TTL at now.
func (s *CacheStore[T]) Fresh(e Entry[T], now time.Time) bool {
	return now.Sub(e.CreatedAt) < s.ttl
}

// Get returns the entry for key without evaluating freshness.
func (s *CacheStore[T]) Get(ctx context.Context, key string) (Entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, key)
}

// GetFresh returns the entry only if it is fresh at now. An expired entry is
// removed before reporting absent.
func (s *CacheStore[T]) GetFresh(ctx context.Context, key string, now time.Time) (Entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.load(ctx, key)
	if !ok {
		return Entry[T]{}, false
	}
	if !s.Fresh(e, now) {
		s.remove(ctx, key)
		return Entry[T]{}, false
	}
	return e, true
}

// GetStale returns the entry regardless of freshness. It never evicts.
func (s *CacheStore[T]) GetStale(ctx context.Context, key string) (Entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, key)
}

// Put writes payload under key with CreatedAt = now.
//
// A new key arriving at a full store evicts the oldest entries first. If the
// backend rejects the write for quota, every other entry is dropped and the
// write is retried once. A write that still fails returns ErrWriteDropped.
func (s *CacheStore[T]) Put(ctx context.Context, key string, payload T, now time.Time) error {
	createdAt := time.UnixMilli(now.UnixMilli())
	raw, err := json.Marshal(record[T]{
		Key:       key,
		CreatedAt: createdAt.UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrWriteDropped, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.created[key]; !exists {
		s.trimTo(ctx, s.capacity-1)
	}

	err = s.backend.Set(ctx, key, string(raw))
	if err == nil {
		s.created[key] = createdAt
		return nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrWriteDropped, key, err)
	}

	log.Printf("INFO: cache quota exceeded writing %s; trimming all %d entries and retrying once", key, len(s.created))
	s.trimTo(ctx, 0)

	if err := s.backend.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("%w: %s after trim: %w", ErrWriteDropped, key, err)
	}
	s.created[key] = createdAt
	return nil
}

// Invalidate removes key. It is used for records that fail to decode.
func (s *CacheStore[T]) Invalidate(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(ctx, key)
}

// Len returns the number of entries.
func (s *CacheStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

// Keys returns the stored keys, oldest first.
func (s *CacheStore[T]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oldestFirst()
}

// load reads and decodes key. Missing records are dropped from the index;
// corrupt ones are invalidated. Callers must hold s.mu.
func (s *CacheStore[T]) load(ctx context.Context, key string) (Entry[T], bool) {
	raw, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("ERROR: cache read %s failed: %v", key, err)
			return Entry[T]{}, false
		}
		delete(s.created, key)
		return Entry[T]{}, false
	}

	var rec record[T]
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Key != key {
		log.Printf("INFO: invalidating corrupt cache record %s", key)
		s.remove(ctx, key)
		return Entry[T]{}, false
	}

	return Entry[T]{
		Key:       rec.Key,
		Payload:   rec.Payload,
		CreatedAt: time.UnixMilli(rec.CreatedAt),
	}, true
}

// remove deletes key from the backend and the index. Callers must hold s.mu.
func (s *CacheStore[T]) remove(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		log.Printf("ERROR: cache delete %s failed: %v", key, err)
	}
	delete(s.created, key)
}

// trimTo evicts oldest entries until at most n remain. Callers must hold s.mu.
func (s *CacheStore[T]) trimTo(ctx context.Context, n int) {
	if n < 0 {
		n = 0
	}
	over := len(s.created) - n
	if over <= 0 {
		return
	}
	for _, key := range s.oldestFirst()[:over] {
		s.remove(ctx, key)
	}
}

func (s *CacheStore[T]) oldestFirst() []string {
	keys := make([]string, 0, len(s.created))
	for k := range s.created {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, tj := s.created[keys[i]], s.created[keys[j]]
		if ti.Equal(tj) {
			return keys[i] < keys[j]
		}
		return ti.Before(tj)
	})
	return keys
}
