package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-dashboard/internal/store"
)

type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	forecast Forecast
	err      error
	block    bool
	gate     chan struct{}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Fetch(ctx context.Context, lat, lon float64) (Forecast, error) {
	p.mu.Lock()
	p.calls++
	block, gate, f, err := p.block, p.gate, p.forecast, p.err
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if block {
		<-ctx.Done()
		return Forecast{}, ctx.Err()
	}
	if err != nil {
		return Forecast{}, err
	}
	f.Latitude, f.Longitude = lat, lon
	return f, nil
}

func (p *fakeProvider) set(f Forecast, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forecast, p.err = f, err
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleForecast(temp float64) Forecast {
	return Forecast{
		Timezone: "America/Chicago",
		Current:  Current{Time: "2025-06-01T07:00", Temperature2m: temp},
		Hourly: Hourly{
			Time:          []string{"2025-06-01T00:00", "2025-06-01T01:00"},
			Temperature2m: []float64{temp - 1, temp + 1},
		},
	}
}

func newTestCache(t *testing.T, backend store.Backend) *store.CacheStore[Forecast] {
	t.Helper()
	c, err := store.NewCacheStore[Forecast](context.Background(), backend, store.Options{
		Capacity:  10,
		TTL:       10 * time.Minute,
		KeyPrefix: KeyPrefix,
	})
	require.NoError(t, err)
	return c
}

func TestService_HitMissAndStaleFallback(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: t0}
	provider := &fakeProvider{forecast: sampleForecast(14)}
	svc := NewService(newTestCache(t, store.NewMemoryBackend(0)), provider, WithClock(clock.Now))

	const lat, lon = -0.2298, -78.5249

	res := svc.Resolve(ctx, lat, lon)
	require.Equal(t, StateSuccess, res.State)
	require.False(t, res.FromCache)
	require.Equal(t, 14.0, res.Data.Current.Temperature2m)
	require.Equal(t, "weather_cache_-0.23_-78.52", res.Key)
	require.Equal(t, 1, provider.callCount())

	clock.Set(t0.Add(5 * time.Minute))
	res = svc.Resolve(ctx, lat, lon)
	require.Equal(t, StateSuccess, res.State)
	require.True(t, res.FromCache)
	require.False(t, res.Degraded)
	require.Equal(t, 14.0, res.Data.Current.Temperature2m)
	require.Equal(t, 1, provider.callCount(), "cache hit must not touch the network")

	clock.Set(t0.Add(11 * time.Minute))
	provider.set(Forecast{}, errors.New("connection refused"))
	res = svc.Resolve(ctx, lat, lon)
	require.Equal(t, 2, provider.callCount())
	require.Equal(t, StateSuccess, res.State)
	require.True(t, res.Degraded)
	require.Equal(t, DegradedAdvisory, res.Advisory)
	require.Empty(t, res.Error)
	require.Equal(t, 14.0, res.Data.Current.Temperature2m)
	require.True(t, res.CachedAt.Equal(t0))
}

func TestService_ErrorWithoutFallback(t *testing.T) {
	provider := &fakeProvider{err: errors.New("HTTP 503")}
	svc := NewService(newTestCache(t, store.NewMemoryBackend(0)), provider, WithClock(func() time.Time { return t0 }))

	res := svc.Resolve(context.Background(), 1, 2)
	require.Equal(t, StateError, res.State)
	require.Nil(t, res.Data)
	require.Contains(t, res.Error, "HTTP 503")
	require.False(t, res.Degraded)
}

func TestService_NearbyCoordinatesShareEntry(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{forecast: sampleForecast(20)}
	svc := NewService(newTestCache(t, store.NewMemoryBackend(0)), provider)

	svc.ResolveAt(ctx, -2.1962, -79.8862, t0)
	res := svc.ResolveAt(ctx, -2.1958, -79.8859, t0.Add(time.Minute))
	require.True(t, res.FromCache)
	require.Equal(t, 1, provider.callCount())
}

func TestService_FetchTimeoutFallsBack(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, store.NewMemoryBackend(0))
	provider := &fakeProvider{forecast: sampleForecast(9)}
	svc := NewService(cache, provider, WithFetchTimeout(20*time.Millisecond))

	require.Equal(t, StateSuccess, svc.ResolveAt(ctx, 5, 5, t0).State)

	provider.mu.Lock()
	provider.block = true
	provider.mu.Unlock()

	res := svc.ResolveAt(ctx, 5, 5, t0.Add(time.Hour))
	require.Equal(t, StateSuccess, res.State)
	require.True(t, res.Degraded)

	res = svc.ResolveAt(ctx, 6, 6, t0.Add(time.Hour))
	require.Equal(t, StateError, res.State)
	require.Contains(t, res.Error, context.DeadlineExceeded.Error())
}

func TestService_DroppedWriteStillServesData(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{forecast: sampleForecast(30)}
	svc := NewService(newTestCache(t, store.NewMemoryBackend(1)), provider)

	res := svc.ResolveAt(ctx, 1, 1, t0)
	require.Equal(t, StateSuccess, res.State)
	require.Equal(t, 30.0, res.Data.Current.Temperature2m)

	svc.ResolveAt(ctx, 1, 1, t0.Add(time.Second))
	require.Equal(t, 2, provider.callCount(), "nothing was cached, so the second call fetches again")
}

func TestService_Refresh(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, store.NewMemoryBackend(0))
	provider := &fakeProvider{forecast: sampleForecast(1)}
	svc := NewService(cache, provider, WithClock(func() time.Time { return t0 }))

	require.NoError(t, svc.Refresh(ctx, 3, 4))
	provider.set(sampleForecast(2), nil)
	require.NoError(t, svc.Refresh(ctx, 3, 4))

	e, ok := cache.GetFresh(ctx, CacheKey(3, 4), t0)
	require.True(t, ok)
	require.Equal(t, 2.0, e.Payload.Current.Temperature2m)

	provider.set(Forecast{}, errors.New("down"))
	require.Error(t, svc.Refresh(ctx, 3, 4))
	e, ok = cache.GetStale(ctx, CacheKey(3, 4))
	require.True(t, ok)
	require.Equal(t, 2.0, e.Payload.Current.Temperature2m)
}

func TestService_ExpiredEntrySurvivesForRepeatedFallback(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, store.NewMemoryBackend(0))
	provider := &fakeProvider{forecast: sampleForecast(14)}
	svc := NewService(cache, provider)

	require.Equal(t, StateSuccess, svc.ResolveAt(ctx, 1, 2, t0).State)
	provider.set(Forecast{}, errors.New("down"))

	for _, at := range []time.Duration{11 * time.Minute, 12 * time.Minute, time.Hour} {
		res := svc.ResolveAt(ctx, 1, 2, t0.Add(at))
		require.Equal(t, StateSuccess, res.State, "at %s", at)
		require.True(t, res.Degraded, "at %s", at)
		require.True(t, res.CachedAt.Equal(t0))
	}

	// The miss path reads without evicting, so the entry is still stored.
	require.Equal(t, 1, cache.Len())
	e, ok := cache.GetStale(ctx, CacheKey(1, 2))
	require.True(t, ok)
	require.Equal(t, 14.0, e.Payload.Current.Temperature2m)

	// A successful refetch overwrites it in place.
	provider.set(sampleForecast(15), nil)
	res := svc.ResolveAt(ctx, 1, 2, t0.Add(2*time.Hour))
	require.False(t, res.Degraded)
	require.True(t, res.CachedAt.Equal(t0.Add(2*time.Hour)))
	require.Equal(t, 1, cache.Len())
}

func TestService_CachedAtMatchesStoredEntry(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, store.NewMemoryBackend(0))
	svc := NewService(cache, &fakeProvider{forecast: sampleForecast(3)})

	now := t0.Add(1500 * time.Microsecond)
	res := svc.ResolveAt(ctx, 7, 8, now)

	e, ok := cache.GetStale(ctx, CacheKey(7, 8))
	require.True(t, ok)
	require.True(t, res.CachedAt.Equal(e.CreatedAt), "result %s, stored %s", res.CachedAt, e.CreatedAt)
	require.True(t, res.CachedAt.Equal(t0.Add(time.Millisecond)))
}

func TestService_SharedFetchReportsLeaderTimestamp(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t, store.NewMemoryBackend(0))
	gate := make(chan struct{})
	provider := &fakeProvider{forecast: sampleForecast(5), gate: gate}
	svc := NewService(cache, provider)

	results := make(chan Result, 2)
	go func() { results <- svc.ResolveAt(ctx, 4, 4, t0) }()
	require.Eventually(t, func() bool { return provider.callCount() == 1 }, time.Second, time.Millisecond)

	go func() { results <- svc.ResolveAt(ctx, 4, 4, t0.Add(time.Second)) }()
	// Give the second caller time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(gate)

	first, second := <-results, <-results
	require.Equal(t, 1, provider.callCount())
	require.True(t, first.CachedAt.Equal(t0))
	require.True(t, second.CachedAt.Equal(t0))

	e, ok := cache.GetStale(ctx, CacheKey(4, 4))
	require.True(t, ok)
	require.True(t, e.CreatedAt.Equal(t0))
}
