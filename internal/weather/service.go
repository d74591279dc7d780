package weather

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"
)

// DegradedAdvisory is surfaced when a stale entry is served because the fetch failed.
const DegradedAdvisory = "serving cached data, network unavailable"

// DefaultFetchTimeout bounds a single remote fetch.
const DefaultFetchTimeout = 10 * time.Second

// State is the lifecycle of a weather request as seen by the UI.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Result is the outcome of resolving one coordinate pair.
type Result struct {
	Key       string
	State     State
	Data      *Forecast
	Error     string
	Degraded  bool
	Advisory  string
	FromCache bool
	CachedAt  time.Time // CreatedAt of the served data
}

// Service decides between the cache, a remote fetch and the stale fallback.
type Service struct {
	cache    Cache
	provider Provider

	now          func() time.Time
	fetchTimeout time.Duration

	// coalesces concurrent misses for the same key
	flight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFetchTimeout bounds each remote fetch. Values <= 0 keep the default.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// NewService creates a new Service.
func NewService(cache Cache, provider Provider, opts ...Option) *Service {
	s := &Service{
		cache:        cache,
		provider:     provider,
		now:          time.Now,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns weather for the coordinates using the service clock.
func (s *Service) Resolve(ctx context.Context, lat, lon float64) Result {
	return s.ResolveAt(ctx, lat, lon, s.now())
}

// ResolveAt serves a fresh cache hit without touching the network. On a miss
// it fetches and writes through; if the fetch fails it falls back to the
// expired entry, flagged as degraded, or reports the failure when there is none.
func (s *Service) ResolveAt(ctx context.Context, lat, lon float64, now time.Time) Result {
	key := CacheKey(lat, lon)

	entry, cached := s.cache.GetStale(ctx, key)
	if cached && s.cache.Fresh(entry, now) {
		payload := entry.Payload
		return Result{
			Key:       key,
			State:     StateSuccess,
			Data:      &payload,
			FromCache: true,
			CachedAt:  entry.CreatedAt,
		}
	}

	got, err := s.fetch(ctx, key, lat, lon, now)
	if err == nil {
		return Result{
			Key:      key,
			State:    StateSuccess,
			Data:     &got.forecast,
			CachedAt: got.createdAt,
		}
	}

	log.Printf("ERROR: %v", err)

	if cached {
		payload := entry.Payload
		log.Printf("INFO: serving stale %s cached at %s", key, entry.CreatedAt.UTC().Format(time.RFC3339))
		return Result{
			Key:       key,
			State:     StateSuccess,
			Data:      &payload,
			Degraded:  true,
			Advisory:  DegradedAdvisory,
			FromCache: true,
			CachedAt:  entry.CreatedAt,
		}
	}

	return Result{
		Key:   key,
		State: StateError,
		Error: err.Error(),
	}
}

// Refresh fetches the coordinates unconditionally and writes the result
// through to the cache. A failed fetch leaves the cache untouched.
func (s *Service) Refresh(ctx context.Context, lat, lon float64) error {
	_, err := s.fetch(ctx, CacheKey(lat, lon), lat, lon, s.now())
	return err
}

// fetched is the outcome of one shared fetch. createdAt is the timestamp the
// entry was written with, so every caller of the flight reports the same one.
type fetched struct {
	forecast  Forecast
	createdAt time.Time
}

func (s *Service) fetch(ctx context.Context, key string, lat, lon float64, now time.Time) (fetched, error) {
	v, err, shared := s.flight.Do(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()

		log.Printf("DEBUG: fetching %s from %s", key, s.provider.Name())
		forecast, err := s.provider.Fetch(fetchCtx, lat, lon)
		if err != nil {
			return nil, fmt.Errorf("fetch %s from %s: %w", key, s.provider.Name(), err)
		}

		// The store keeps millisecond timestamps.
		createdAt := time.UnixMilli(now.UnixMilli())

		// A dropped write only loses the cache copy; the caller still gets the data.
		if err := s.cache.Put(ctx, key, forecast, createdAt); err != nil {
			log.Printf("INFO: %v", err)
		}
		return fetched{forecast: forecast, createdAt: createdAt}, nil
	})
	if err != nil {
		return fetched{}, err
	}
	if shared {
		log.Printf("DEBUG: fetch for %s shared with a concurrent request", key)
	}
	return v.(fetched), nil
}
