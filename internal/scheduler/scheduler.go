package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Refresher fetches coordinates and writes them through to the cache.
type Refresher interface {
	Refresh(ctx context.Context, lat, lon float64) error
}

// Scheduler periodically refreshes the cache for the catalog cities, so
// dashboard selections usually hit a fresh entry.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	cities    []weather.City
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(cities []weather.City, interval time.Duration, refresher Refresher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		cities:    cities,
		interval:  interval,
		timeout:   30 * time.Second,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		log.Println("scheduler: no cities configured; nothing to prewarm")
		return nil
	}
	if s.interval <= 0 {
		log.Println("scheduler: prewarm disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.refreshAll)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) refreshAll() {
	log.Println("scheduler: running cache prewarm job")

	var wg sync.WaitGroup
	for _, city := range s.cities {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()

			if err := s.refresher.Refresh(ctx, city.Latitude, city.Longitude); err != nil {
				log.Printf("scheduler: prewarm failed for %s: %v", city.Name, err)
			}
		}()
	}
	wg.Wait()
	log.Println("scheduler: completed cache prewarm job")
}
