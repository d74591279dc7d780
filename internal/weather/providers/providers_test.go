package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/stretchr/testify/require"
)

var fastBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

const openMeteoBody = `{
  "latitude": -0.25,
  "longitude": -78.5,
  "generationtime_ms": 0.05,
  "utc_offset_seconds": -18000,
  "timezone": "America/Chicago",
  "timezone_abbreviation": "CDT",
  "elevation": 2850,
  "current_units": {"time": "iso8601", "temperature_2m": "°C", "relative_humidity_2m": "%", "apparent_temperature": "°C", "wind_speed_10m": "km/h"},
  "current": {"time": "2025-06-01T07:00", "temperature_2m": 11.4, "relative_humidity_2m": 87, "apparent_temperature": 10.2, "wind_speed_10m": 4.3},
  "hourly_units": {"time": "iso8601", "temperature_2m": "°C", "relative_humidity_2m": "%", "apparent_temperature": "°C", "wind_speed_10m": "km/h"},
  "hourly": {
    "time": ["2025-06-01T00:00", "2025-06-01T01:00"],
    "temperature_2m": [10.1, 9.8],
    "relative_humidity_2m": [90, 92],
    "apparent_temperature": [9.0, 8.7],
    "wind_speed_10m": [3.1, 2.9]
  }
}`

func TestOpenMeteoProvider_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "-0.2298", q.Get("latitude"))
		require.Equal(t, "-78.5249", q.Get("longitude"))
		require.Equal(t, openMeteoFields, q.Get("current"))
		require.Equal(t, openMeteoFields, q.Get("hourly"))
		require.Equal(t, "America/Guayaquil", q.Get("timezone"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openMeteoBody))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, "America/Guayaquil")
	f, err := p.Fetch(context.Background(), -0.2298, -78.5249)
	require.NoError(t, err)
	require.Equal(t, "openmeteo", p.Name())
	require.Equal(t, 11.4, f.Current.Temperature2m)
	require.Equal(t, "km/h", f.CurrentUnits.WindSpeed10m)
	require.Equal(t, []string{"2025-06-01T00:00", "2025-06-01T01:00"}, f.Hourly.Time)
	require.Equal(t, []float64{90, 92}, f.Hourly.RelativeHumidity2m)
}

func TestOpenMeteoProvider_Defaults(t *testing.T) {
	p := NewOpenMeteoProvider(http.DefaultClient, "", "")
	require.Equal(t, DefaultOpenMeteoURL, p.baseURL)
	require.Equal(t, DefaultTimezone, p.timezone)
}

func TestOpenMeteoProvider_ServerErrorRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, "")
	p.httpCfg.Backoff = fastBackoff

	_, err := p.Fetch(context.Background(), 1, 2)
	require.ErrorIs(t, err, errServerError)
	require.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestOpenMeteoProvider_ClientErrorDoesNotRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, "")
	p.httpCfg.Backoff = fastBackoff

	_, err := p.Fetch(context.Background(), 1, 2)
	require.ErrorIs(t, err, errUnexpected)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestOpenMeteoProvider_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, "")
	_, err := p.Fetch(context.Background(), 1, 2)
	require.Error(t, err)
}

func TestDoRequestWithResilience_RequiresClient(t *testing.T) {
	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{Backoff: fastBackoff}, newCircuitBreaker("t"), nil)
	require.ErrorIs(t, err, errNoHTTPClient)
}

func TestCohereClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/chat", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req cohereChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, DefaultCohereModel, req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, "sys", req.Messages[0].Content)
		require.Equal(t, "user", req.Messages[1].Role)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":[{"type":"text","text":"It is mild."}]}}`))
	}))
	defer srv.Close()

	c := NewCohereClient(srv.Client(), "secret", srv.URL+"/", "")
	text, err := c.Complete(context.Background(), "sys", "how is it?")
	require.NoError(t, err)
	require.Equal(t, "It is mild.", text)
}

func TestCohereClient_NoAPIKey(t *testing.T) {
	c := NewCohereClient(http.DefaultClient, "", "", "")
	_, err := c.Complete(context.Background(), "sys", "user")
	require.ErrorIs(t, err, errNoAPIKey)
}

func TestCohereClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":[]}}`))
	}))
	defer srv.Close()

	c := NewCohereClient(srv.Client(), "k", srv.URL, "")
	_, err := c.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
}

func TestGoogleGeocoder_Lookup(t *testing.T) {
	g := NewGoogleGeocoder("key", "Ecuador")
	g.lookup = func(a geocoder.Address) (geocoder.Location, error) {
		require.Equal(t, "Loja", a.City)
		require.Equal(t, "Ecuador", a.Country)
		require.Equal(t, "key", geocoder.ApiKey)
		return geocoder.Location{Latitude: -3.99, Longitude: -79.2}, nil
	}

	city, err := g.Lookup(context.Background(), " Loja ")
	require.NoError(t, err)
	require.Equal(t, "loja", city.ID)
	require.Equal(t, -3.99, city.Latitude)
	require.Equal(t, -79.2, city.Longitude)
}

func TestGoogleGeocoder_Errors(t *testing.T) {
	_, err := NewGoogleGeocoder("", "Ecuador").Lookup(context.Background(), "Loja")
	require.ErrorIs(t, err, ErrGeocoderDisabled)

	g := NewGoogleGeocoder("key", "")
	g.lookup = func(geocoder.Address) (geocoder.Location, error) {
		return geocoder.Location{}, errors.New("ZERO_RESULTS")
	}
	_, err = g.Lookup(context.Background(), "Atlantis")
	require.ErrorContains(t, err, "ZERO_RESULTS")
}
