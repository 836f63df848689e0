// Command pm25-fetch runs one ingestion pass: discover PM2.5 sensors around
// the configured coordinate, fetch their last day of measurements, merge
// them into the persisted table, and prune to the retention horizon. It is
// meant to be invoked periodically by an external scheduler (e.g. daily);
// overlapping fetch windows across runs are deduplicated on merge.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ktmair/pm25-pipeline/internal/config"
	"github.com/ktmair/pm25-pipeline/internal/openaq"
	"github.com/ktmair/pm25-pipeline/internal/pipeline"
	"github.com/ktmair/pm25-pipeline/internal/ratelimit"
	"github.com/ktmair/pm25-pipeline/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.APIKey == "" {
		log.Fatalf("OPENAQ_API_KEY is required")
	}

	limiter := ratelimit.New(cfg.MaxRequestsPerMinute, time.Minute)
	client := openaq.NewClient(openaq.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		PageLimit:  cfg.PageLimit,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Limiter:    limiter,
	})

	fileStore := store.NewFileStore(cfg.DataFile)
	runner := pipeline.NewRunner(client, fileStore, pipeline.Config{
		Center:       cfg.Center,
		RadiusMeters: cfg.RadiusMeters,
		Parameter:    cfg.Parameter,
		FetchWindow:  cfg.FetchWindow,
		Retention:    cfg.Retention,
		Workers:      cfg.FetchWorkers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("ingestion run failed: %v", err)
	}

	fmt.Printf("Added %d rows\n", stats.NewRecords)
	fmt.Printf("Total stored: %d\n", stats.TotalStored)
	fmt.Printf("Requests used: %d\n", stats.Requests)
}
