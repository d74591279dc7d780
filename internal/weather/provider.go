package weather

import (
	"context"
	"time"

	"github.com/i474232898/weather-dashboard/internal/store"
)

// Provider abstracts the remote weather data source (e.g. Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (Forecast, error)
}

// Cache is the contract the orchestrator needs from the cache store. Lookups
// go through GetStale so an expired entry stays available as the fallback.
type Cache interface {
	GetStale(ctx context.Context, key string) (store.Entry[Forecast], bool)
	Fresh(e store.Entry[Forecast], now time.Time) bool
	Put(ctx context.Context, key string, payload Forecast, now time.Time) error
}

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Lookup(ctx context.Context, city string) (City, error)
}
