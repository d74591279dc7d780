package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// defaultCities is the dashboard selector catalog.
const defaultCities = "guayaquil:Guayaquil:-2.1962:-79.8862," +
	"quito:Quito:-0.2298:-78.5249," +
	"manta:Manta:-0.9677:-80.7089," +
	"cuenca:Cuenca:-2.9006:-79.0045"

type AppConfig struct {
	Port string

	// HTTPTimeout bounds every outbound HTTP call; FetchTimeout bounds one weather resolve.
	HTTPTimeout  time.Duration
	FetchTimeout time.Duration

	// Weather cache.
	CacheTTL      time.Duration
	CacheCapacity int
	CacheBackend  string // sqlite | memory
	CacheDBPath   string
	CacheMaxBytes int64 // 0 = unlimited

	OpenMeteoURL    string
	WeatherTimezone string

	// Chat assistant.
	ChatRateLimit  int
	ChatRateWindow time.Duration
	CohereAPIKey   string
	CohereURL      string
	CohereModel    string

	// Geocoding of cities outside the catalog.
	GeocoderAPIKey  string
	GeocoderCountry string

	// PrewarmInterval controls how often catalog cities are refreshed (0 = disabled).
	PrewarmInterval time.Duration

	Cities weather.Catalog
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "10m"); err != nil {
		return nil, err
	}
	cfg.CacheCapacity = getenvInt("CACHE_CAPACITY", 10)
	cfg.CacheBackend = strings.ToLower(getenvDefault("CACHE_BACKEND", BackendSQLite))
	if cfg.CacheBackend != BackendSQLite && cfg.CacheBackend != BackendMemory {
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want %s or %s", cfg.CacheBackend, BackendSQLite, BackendMemory)
	}
	cfg.CacheDBPath = getenvDefault("CACHE_DB_PATH", "weather-cache.db")
	cfg.CacheMaxBytes = int64(getenvInt("CACHE_MAX_BYTES", 0))

	cfg.OpenMeteoURL = os.Getenv("OPENMETEO_BASE_URL")
	cfg.WeatherTimezone = getenvDefault("WEATHER_TIMEZONE", "America/Chicago")

	cfg.ChatRateLimit = getenvInt("CHAT_RATE_LIMIT", 20)
	if cfg.ChatRateWindow, err = getenvDuration("CHAT_RATE_WINDOW", "1m"); err != nil {
		return nil, err
	}
	cfg.CohereAPIKey = os.Getenv("COHERE_API_KEY")
	cfg.CohereURL = os.Getenv("COHERE_BASE_URL")
	cfg.CohereModel = os.Getenv("COHERE_MODEL")

	cfg.GeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")
	cfg.GeocoderCountry = getenvDefault("GEOCODER_COUNTRY", "Ecuador")

	// Prewarm at the cache TTL by default, so catalog entries rarely expire.
	if cfg.PrewarmInterval, err = getenvDuration("PREWARM_INTERVAL", cfg.CacheTTL.String()); err != nil {
		return nil, err
	}

	cities, err := parseCities(getenvDefault("WEATHER_CITIES", defaultCities))
	if err != nil {
		return nil, err
	}
	cfg.Cities = cities

	return cfg, nil
}

// parseCities reads a comma-separated list of id:Name:lat:lon entries.
func parseCities(s string) (weather.Catalog, error) {
	var cities weather.Catalog
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid WEATHER_CITIES entry %q: want id:Name:lat:lon", item)
		}
		lat, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in WEATHER_CITIES entry %q", item)
		}
		lon, err := strconv.ParseFloat(parts[3], 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in WEATHER_CITIES entry %q", item)
		}
		cities = append(cities, weather.City{
			ID:        strings.ToLower(strings.TrimSpace(parts[0])),
			Name:      strings.TrimSpace(parts[1]),
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return cities, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
