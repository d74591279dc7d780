package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-dashboard/internal/api/http"
	"github.com/i474232898/weather-dashboard/internal/assistant"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/ratelimit"
	"github.com/i474232898/weather-dashboard/internal/scheduler"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

func main() {
	// Load configuration (also reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Persistence medium behind the weather cache.
	var backend store.Backend
	switch cfg.CacheBackend {
	case config.BackendMemory:
		backend = store.NewMemoryBackend(int(cfg.CacheMaxBytes))
	default:
		sqliteBackend, err := store.OpenSQLite(cfg.CacheDBPath, cfg.CacheMaxBytes)
		if err != nil {
			log.Fatalf("failed to open cache database: %v", err)
		}
		defer sqliteBackend.Close()
		backend = sqliteBackend
	}

	cache, err := store.NewCacheStore[weather.Forecast](context.Background(), backend, store.Options{
		Capacity:  cfg.CacheCapacity,
		TTL:       cfg.CacheTTL,
		KeyPrefix: weather.KeyPrefix,
	})
	if err != nil {
		log.Fatalf("failed to initialise weather cache: %v", err)
	}
	log.Printf("INFO: weather cache ready (%s backend, %d/%d entries, ttl %s)",
		cfg.CacheBackend, cache.Len(), cache.Capacity(), cache.TTL())

	// Orchestrator: cache first, then Open-Meteo, then stale fallback.
	provider := providers.NewOpenMeteoProvider(httpClient, cfg.OpenMeteoURL, cfg.WeatherTimezone)
	service := weather.NewService(cache, provider, weather.WithFetchTimeout(cfg.FetchTimeout))

	// Chat assistant behind the sliding-window limiter.
	limiter := ratelimit.NewSlidingWindow(cfg.ChatRateLimit, cfg.ChatRateWindow)
	completer := providers.NewCohereClient(httpClient, cfg.CohereAPIKey, cfg.CohereURL, cfg.CohereModel)
	if cfg.CohereAPIKey == "" {
		log.Println("INFO: COHERE_API_KEY not set; assistant replies will fail")
	}
	chat := assistant.New(completer, limiter)

	deps := httpapi.Dependencies{
		Weather:   service,
		Dashboard: weather.NewView(service),
		Assistant: chat,
		Cities:    cfg.Cities,
	}
	if cfg.GeocoderAPIKey != "" {
		deps.Geocoder = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey, cfg.GeocoderCountry)
	}

	// Scheduler that keeps the catalog cities warm in the cache.
	sched := scheduler.New(cfg.Cities, cfg.PrewarmInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.FetchTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":       "ok",
			"service":      "weather-dashboard",
			"cacheEntries": cache.Len(),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, deps)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
