package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/ktmair/pm25-pipeline/internal/pipeline"
)

// Scheduler periodically runs the ingestion pipeline. A failed run is logged
// and skipped; the previously persisted table remains the latest valid
// state. Only one job instance runs at a time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    *pipeline.Runner
	interval  time.Duration

	mu   sync.RWMutex
	last *pipeline.Stats
}

// New creates a new Scheduler around the given pipeline runner.
func New(runner *pipeline.Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		interval:  interval,
	}
}

// Start schedules the periodic ingestion job and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	s.scheduler.SingletonModeAll()
	_, err := s.scheduler.Every(interval).Do(func() {
		log.Println("scheduler: running ingestion job")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		stats, err := s.runner.Run(ctx)
		if err != nil {
			log.Printf("scheduler: ingestion run failed: %v", err)
			return
		}

		s.mu.Lock()
		s.last = &stats
		s.mu.Unlock()

		log.Printf("scheduler: run %s added %d rows (total stored %d, requests %d)",
			stats.RunID, stats.NewRecords, stats.TotalStored, stats.Requests)
	})
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

// LastStats reports the most recent successful ingestion run, if any.
func (s *Scheduler) LastStats() (pipeline.Stats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.last == nil {
		return pipeline.Stats{}, false
	}
	return *s.last, true
}
