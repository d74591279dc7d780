package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Backend when no record exists for a key.
	ErrNotFound = errors.New("no cached record for key")

	// ErrQuotaExceeded is returned by a Backend when a write would exceed its storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrWriteDropped is returned by CacheStore.Put when the write could not be persisted,
	// even after the forced trim and retry.
	ErrWriteDropped = errors.New("cache write dropped")
)

// Backend is the persistence medium behind a CacheStore.
// Records are opaque text values keyed by string.
type Backend interface {
	// Get returns the record stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value under key. Implementations with a quota return ErrQuotaExceeded.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every stored key.
	Keys(ctx context.Context) ([]string, error)
}
