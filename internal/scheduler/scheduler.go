package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

// Syncer pulls provider data for a location into the store.
type Syncer interface {
	Sync(ctx context.Context, q airquality.LocationQuery) (int, error)
}

// Scheduler periodically syncs air-quality data for configured locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	syncer    Syncer
	locations []airquality.LocationQuery
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. A zero interval disables periodic runs.
func New(locations []airquality.LocationQuery, interval time.Duration, syncer Syncer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		syncer:    syncer,
		locations: locations,
		interval:  interval,
		timeout:   60 * time.Second,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 || s.interval <= 0 {
		s.logger.Info("no locations or interval configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval, "locations", len(s.locations))
	return nil
}

// RunOnce syncs every configured location concurrently and returns the
// total number of rows written. Failures are logged per location.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.logger.Info("running sync job")

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for _, loc := range s.locations {
		wg.Add(1)
		go func(loc airquality.LocationQuery) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			count, err := s.syncer.Sync(ctx, loc)
			if err != nil {
				s.logger.Error("sync failed", "city", loc.City, "error", err)
				return
			}
			mu.Lock()
			total += count
			mu.Unlock()
		}(loc)
	}
	wg.Wait()

	s.logger.Info("completed sync job", "rows", total)
	return total
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
