package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/sony/gobreaker"
)

const (
	DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"
	DefaultTimezone     = "America/Chicago"

	// openMeteoFields is requested for both the current snapshot and the hourly series.
	openMeteoFields = "temperature_2m,relative_humidity_2m,apparent_temperature,wind_speed_10m"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	timezone string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates a provider. Empty baseURL or timezone select the defaults.
func NewOpenMeteoProvider(client *http.Client, baseURL, timezone string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	if timezone == "" {
		timezone = DefaultTimezone
	}

	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  baseURL,
		timezone: timezone,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff,
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Forecast, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
		values.Set("current", openMeteoFields)
		values.Set("hourly", openMeteoFields)
		values.Set("timezone", p.timezone)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Forecast{}, err
	}
	defer resp.Body.Close()

	var forecast weather.Forecast
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return weather.Forecast{}, fmt.Errorf("decode openmeteo response: %w", err)
	}
	return forecast, nil
}
