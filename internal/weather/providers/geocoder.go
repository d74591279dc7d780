package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// ErrGeocoderDisabled is returned when no Google API key is configured.
var ErrGeocoderDisabled = errors.New("geocoding requires a Google API key")

// geocoderMu guards the package-level API key of kelvins/geocoder.
var geocoderMu sync.Mutex

// GoogleGeocoder resolves city names through the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey  string
	country string

	// lookup is geocoder.Geocoding, swappable in tests.
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder creates a geocoder that biases lookups to country.
func NewGoogleGeocoder(apiKey, country string) *GoogleGeocoder {
	return &GoogleGeocoder{
		apiKey:  apiKey,
		country: country,
		lookup:  geocoder.Geocoding,
	}
}

var _ weather.Geocoder = (*GoogleGeocoder)(nil)

// Lookup returns the coordinates of city.
func (g *GoogleGeocoder) Lookup(ctx context.Context, city string) (weather.City, error) {
	if g.apiKey == "" {
		return weather.City{}, ErrGeocoderDisabled
	}
	if err := ctx.Err(); err != nil {
		return weather.City{}, err
	}

	name := strings.TrimSpace(city)

	geocoderMu.Lock()
	geocoder.ApiKey = g.apiKey
	loc, err := g.lookup(geocoder.Address{City: name, Country: g.country})
	geocoderMu.Unlock()

	if err != nil {
		return weather.City{}, fmt.Errorf("geocode %q: %w", name, err)
	}

	return weather.City{
		ID:        strings.ToLower(name),
		Name:      name,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	}, nil
}
