package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ktmair/pm25-pipeline/internal/diurnal"
	"github.com/ktmair/pm25-pipeline/internal/measurement"
	"github.com/ktmair/pm25-pipeline/internal/pipeline"
	"github.com/ktmair/pm25-pipeline/internal/store"
)

var validate = validator.New()

// RunReporter exposes the most recent ingestion run for the stats endpoint.
type RunReporter interface {
	LastStats() (pipeline.Stats, bool)
}

// RegisterRoutes wires the read-side HTTP handlers into the Fiber app. The
// handlers only read the persisted table and derive diurnal aggregates; the
// ingestion pipeline is the sole writer.
func RegisterRoutes(app *fiber.App, st store.Store, localOffset time.Duration, runs RunReporter) {
	v1 := app.Group("/api/v1")

	v1.Get("/diurnal/summary", func(c *fiber.Ctx) error {
		window, err := parseWindowQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		table, err := loadTable(c.Context(), st)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load measurement table")
		}

		agg := diurnal.Aggregate(table, localOffset, window)
		return c.JSON(fiber.Map{
			"window": window.String(),
			"hours":  agg.Hours,
		})
	})

	v1.Get("/diurnal/series", func(c *fiber.Ctx) error {
		window, err := parseWindowQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		table, err := loadTable(c.Context(), st)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load measurement table")
		}

		band := diurnal.Aggregate(table, localOffset, window).Band()
		return c.JSON(fiber.Map{
			"window": window.String(),
			"band":   band,
		})
	})

	v1.Get("/stats", func(c *fiber.Ctx) error {
		table, err := loadTable(c.Context(), st)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load measurement table")
		}

		resp := fiber.Map{
			"total_stored": len(table),
		}
		if runs != nil {
			if last, ok := runs.LastStats(); ok {
				resp["last_run"] = last
			}
		}
		return c.JSON(resp)
	})
}

// diurnalQuery holds the aggregation query parameters.
type diurnalQuery struct {
	Window string `validate:"omitempty,oneof=7d 14d"`
}

func parseWindowQuery(c *fiber.Ctx) (diurnal.Window, error) {
	q := diurnalQuery{Window: c.Query("window")}
	if err := validate.Struct(q); err != nil {
		return 0, err
	}
	return diurnal.ParseWindow(q.Window)
}

// loadTable reads the persisted table, treating a not-yet-persisted store as
// an empty dataset: "no data yet" is a valid state for the read side, not an
// error.
func loadTable(ctx context.Context, st store.Store) (measurement.Table, error) {
	table, err := st.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return table, nil
}
