package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ktmair/pm25-pipeline/internal/measurement"
	"github.com/ktmair/pm25-pipeline/internal/store"
)

const nepalOffset = 5*time.Hour + 45*time.Minute

func newTestApp(t *testing.T, st store.Store) *fiber.App {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app, st, nepalOffset, nil)
	return app
}

type summaryResponse struct {
	Window string `json:"window"`
	Hours  []struct {
		Hour   int      `json:"hour"`
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		Median *float64 `json:"median"`
	} `json:"hours"`
}

// TestSummaryWindowValidation verifies that the window query parameter only
// accepts the enumerated trailing windows.
func TestSummaryWindowValidation(t *testing.T) {
	app := newTestApp(t, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diurnal/summary?window=3d", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestSummaryEmptyStoreReturns24EmptyBuckets(t *testing.T) {
	app := newTestApp(t, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diurnal/summary", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Window != "14d" {
		t.Fatalf("expected default window 14d, got %q", body.Window)
	}
	if len(body.Hours) != 24 {
		t.Fatalf("expected 24 hour buckets, got %d", len(body.Hours))
	}
	for _, h := range body.Hours {
		if h.Count != 0 {
			t.Fatalf("expected empty bucket for hour %d, got count %d", h.Hour, h.Count)
		}
		if h.Mean != nil {
			t.Fatalf("expected null mean for empty hour %d, got %v", h.Hour, *h.Mean)
		}
	}
}

func TestSummaryAggregatesStoredTable(t *testing.T) {
	memStore := store.NewMemoryStore()
	table := measurement.Table{
		{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 10, SensorID: 1},
		{Timestamp: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), Value: 50, SensorID: 1},
	}
	if err := memStore.Save(context.Background(), table); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	app := newTestApp(t, memStore)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diurnal/summary?window=14d", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// 00:00 UTC is hour 5 local, 06:00 UTC is hour 11 local.
	if h := body.Hours[5]; h.Count != 1 || h.Mean == nil || *h.Mean != 10 {
		t.Fatalf("unexpected hour 5 bucket: %+v", h)
	}
	if h := body.Hours[11]; h.Count != 1 || h.Mean == nil || *h.Mean != 50 {
		t.Fatalf("unexpected hour 11 bucket: %+v", h)
	}
}

func TestSeriesReturnsBand(t *testing.T) {
	memStore := store.NewMemoryStore()
	table := measurement.Table{
		{Timestamp: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), Value: 50, SensorID: 1},
	}
	if err := memStore.Save(context.Background(), table); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	app := newTestApp(t, memStore)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diurnal/series?window=7d", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Window string `json:"window"`
		Band   struct {
			Median []*float64 `json:"median"`
			Q25    []*float64 `json:"q25"`
			Q75    []*float64 `json:"q75"`
		} `json:"band"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Band.Median) != 24 {
		t.Fatalf("expected a 24-point series, got %d", len(body.Band.Median))
	}
	if body.Band.Median[11] == nil || *body.Band.Median[11] != 50 {
		t.Fatalf("expected hour 11 median 50, got %v", body.Band.Median[11])
	}
}

func TestStatsEndpoint(t *testing.T) {
	app := newTestApp(t, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		TotalStored int `json:"total_stored"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.TotalStored != 0 {
		t.Fatalf("expected empty store, got %d rows", body.TotalStored)
	}
}
