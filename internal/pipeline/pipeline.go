package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ktmair/pm25-pipeline/internal/measurement"
	"github.com/ktmair/pm25-pipeline/internal/openaq"
	"github.com/ktmair/pm25-pipeline/internal/store"
)

// Stats reports what a single ingestion run did.
type Stats struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	Sensors     int       `json:"sensors"`
	NewRecords  int       `json:"new_records"`
	TotalStored int       `json:"total_stored"`
	Requests    int64     `json:"requests"`
}

// Config holds the ingestion parameters for a deployment.
type Config struct {
	Center       openaq.Coordinate
	RadiusMeters int
	Parameter    string
	FetchWindow  time.Duration
	Retention    time.Duration
	Workers      int
}

// Runner executes one ingestion pass: discover sensors around the configured
// coordinate, fetch their measurements over the trailing fetch window, merge
// with the persisted table, prune to the retention horizon, and write the
// result back as a single atomic replace. Any HTTP or store failure fails
// the whole run before the write, leaving the previous table untouched.
type Runner struct {
	client *openaq.Client
	store  store.Store
	cfg    Config
	nowFn  func() time.Time
}

// NewRunner creates a Runner. Zero config fields fall back to the reference
// deployment defaults: a 24-hour fetch window, a 14-day retention horizon,
// and 4 fetch workers.
func NewRunner(client *openaq.Client, st store.Store, cfg Config) *Runner {
	if cfg.FetchWindow <= 0 {
		cfg.FetchWindow = 24 * time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 14 * 24 * time.Hour
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Runner{client: client, store: st, cfg: cfg, nowFn: time.Now}
}

// Run executes one ingestion pass and returns its statistics.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	stats := Stats{RunID: uuid.NewString(), StartedAt: r.nowFn().UTC()}
	now := stats.StartedAt
	from := now.Add(-r.cfg.FetchWindow)

	sensors, err := r.client.DiscoverSensors(ctx, r.cfg.Center, r.cfg.RadiusMeters, r.cfg.Parameter)
	if err != nil {
		return stats, err
	}
	stats.Sensors = len(sensors)
	log.Printf("INFO: run %s: discovered %d %s sensors", stats.RunID, len(sensors), r.cfg.Parameter)

	// Fetch per sensor through a bounded pool. All workers share the
	// client's rate limiter, so the 60-second window stays process-wide.
	// Results are slotted by discovery index to keep run output
	// deterministic; the first error cancels the remaining fetches.
	perSensor := make([]measurement.Table, len(sensors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, s := range sensors {
		i, s := i, s
		g.Go(func() error {
			records, err := r.client.FetchMeasurements(gctx, s, from, now)
			if err != nil {
				return err
			}
			perSensor[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	var fresh measurement.Table
	for _, t := range perSensor {
		fresh = append(fresh, t...)
	}
	stats.NewRecords = len(fresh)

	existing, err := r.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			// Ambiguous read failure: abort rather than fabricate an empty
			// baseline over a possibly intact table.
			return stats, err
		}
		existing = nil
	}

	merged := measurement.MergeAndPrune(existing, fresh, now, r.cfg.Retention)
	if err := r.store.Save(ctx, merged); err != nil {
		return stats, err
	}

	stats.TotalStored = len(merged)
	stats.Requests = r.client.Requests()
	return stats, nil
}
