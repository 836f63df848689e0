// Command pm25-server serves the diurnal aggregates over HTTP and keeps the
// persisted table fresh with a built-in daily ingestion job.
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

	httpapi "github.com/ktmair/pm25-pipeline/internal/api/http"
	"github.com/ktmair/pm25-pipeline/internal/config"
	"github.com/ktmair/pm25-pipeline/internal/openaq"
	"github.com/ktmair/pm25-pipeline/internal/pipeline"
	"github.com/ktmair/pm25-pipeline/internal/ratelimit"
	"github.com/ktmair/pm25-pipeline/internal/scheduler"
	"github.com/ktmair/pm25-pipeline/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound API calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	limiter := ratelimit.New(cfg.MaxRequestsPerMinute, time.Minute)
	client := openaq.NewClient(openaq.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		PageLimit:  cfg.PageLimit,
		HTTPClient: httpClient,
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

	// Scheduler that periodically runs the ingestion pipeline. Without an
	// API key the server still serves whatever table is on disk.
	var sched *scheduler.Scheduler
	if cfg.APIKey != "" {
		sched = scheduler.New(runner, cfg.ScheduleInterval)
		if err := sched.Start(); err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	} else {
		log.Println("INFO: OPENAQ_API_KEY not set; ingestion disabled, serving persisted table only")
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "pm25-pipeline",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "pm25-pipeline",
		})
	})

	// API routes.
	var runs httpapi.RunReporter
	if sched != nil {
		runs = sched
	}
	httpapi.RegisterRoutes(app, fileStore, cfg.LocalOffset, runs)

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
