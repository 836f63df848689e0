package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ktmair/pm25-pipeline/internal/measurement"
	"github.com/ktmair/pm25-pipeline/internal/openaq"
	"github.com/ktmair/pm25-pipeline/internal/ratelimit"
	"github.com/ktmair/pm25-pipeline/internal/store"
)

// fakeAPI emulates the two OpenAQ endpoints the pipeline uses: one location
// with two pm25 sensors, each serving a couple of fresh measurements.
func fakeAPI(t *testing.T, now time.Time) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/locations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[
			{"name":"Ratnapark","coordinates":{"latitude":27.7017,"longitude":85.3123},
			 "sensors":[{"id":101,"parameter":{"name":"pm25"}},{"id":102,"parameter":{"name":"pm25"}},{"id":103,"parameter":{"name":"o3"}}]}
		]}`)
	})

	measurements := func(ts time.Time, values ...float64) string {
		out := `{"results":[`
		for i, v := range values {
			if i > 0 {
				out += ","
			}
			out += fmt.Sprintf(`{"value":%g,"period":{"datetimeFrom":{"utc":%q}}}`, v, ts.Add(time.Duration(i)*time.Hour).Format(time.RFC3339))
		}
		return out + `]}`
	}

	mux.HandleFunc("/sensors/101/measurements", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, measurements(now.Add(-3*time.Hour), 40, 42))
	})
	mux.HandleFunc("/sensors/102/measurements", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, measurements(now.Add(-2*time.Hour), 55))
	})

	return mux
}

func newTestRunner(t *testing.T, handler http.Handler, st store.Store) *Runner {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := openaq.NewClient(openaq.Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		PageLimit:  1000,
		HTTPClient: srv.Client(),
		Limiter:    ratelimit.New(10000, time.Minute),
	})
	return NewRunner(client, st, Config{
		Center:       openaq.Coordinate{Latitude: 27.702286, Longitude: 85.319805},
		RadiusMeters: 10000,
		Parameter:    "pm25",
		FetchWindow:  24 * time.Hour,
		Retention:    14 * 24 * time.Hour,
		Workers:      2,
	})
}

func TestRunMergesAndPrunes(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	memStore := store.NewMemoryStore()
	// Prior state: one row past the retention horizon, one row that
	// duplicates what sensor 102 will return.
	dupTS := now.Add(-2 * time.Hour)
	seed := measurement.Table{
		{Timestamp: now.Add(-20 * 24 * time.Hour), Value: 9, SensorID: 101, Location: "Ratnapark"},
		{Timestamp: dupTS, Value: 55, SensorID: 102, Location: "Ratnapark"},
	}
	if err := memStore.Save(ctx, seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	runner := newTestRunner(t, fakeAPI(t, now), memStore)
	stats, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2 rows from sensor 101 + 1 from 102.
	if stats.NewRecords != 3 {
		t.Fatalf("expected 3 new records, got %d", stats.NewRecords)
	}
	// Seeded duplicate collapses with sensor 102's row, old row is pruned:
	// 101@-3h, 101@-2h, 102@-2h.
	if stats.TotalStored != 3 {
		t.Fatalf("expected 3 stored records, got %d", stats.TotalStored)
	}
	// 1 locations page + 1 measurements page per pm25 sensor.
	if stats.Requests != 3 {
		t.Fatalf("expected 3 requests, got %d", stats.Requests)
	}
	if stats.Sensors != 2 {
		t.Fatalf("expected 2 sensors, got %d", stats.Sensors)
	}
	if stats.RunID == "" {
		t.Fatal("expected a run id")
	}

	table, err := memStore.Load(ctx)
	if err != nil {
		t.Fatalf("load after run: %v", err)
	}
	for _, r := range table {
		if r.Timestamp.Before(now.Add(-14 * 24 * time.Hour)) {
			t.Fatalf("retained row older than retention horizon: %+v", r)
		}
	}
}

func TestRunFailsFastWithoutPartialCommit(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	handler := fakeAPI(t, now).(*http.ServeMux)
	failing := http.NewServeMux()
	failing.Handle("/locations", handler)
	failing.HandleFunc("/sensors/101/measurements", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	failing.Handle("/sensors/102/measurements", handler)

	memStore := store.NewMemoryStore()
	seed := measurement.Table{{Timestamp: now.Add(-time.Hour), Value: 12, SensorID: 999}}
	if err := memStore.Save(ctx, seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	runner := newTestRunner(t, failing, memStore)
	if _, err := runner.Run(ctx); err == nil {
		t.Fatal("expected the run to fail on the 502 response")
	}

	// The failed run must leave the previous table as the latest state.
	table, err := memStore.Load(ctx)
	if err != nil {
		t.Fatalf("load after failed run: %v", err)
	}
	if len(table) != 1 || table[0].SensorID != 999 {
		t.Fatalf("prior table was disturbed by a failed run: %+v", table)
	}
}

func TestRunWithEmptyStoreStartsFromEmptyBaseline(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	memStore := store.NewMemoryStore()
	runner := newTestRunner(t, fakeAPI(t, now), memStore)

	stats, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalStored != stats.NewRecords {
		t.Fatalf("empty baseline should store exactly the fetched rows: %+v", stats)
	}
}
