package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ktmair/pm25-pipeline/internal/openaq"
)

// AppConfig holds everything the ingestion pipeline and the read-side API
// need. Defaults describe the reference deployment: PM2.5 sensors within
// 10 km of central Kathmandu, Nepal local time (UTC+05:45).
type AppConfig struct {
	// OpenAQ API access.
	APIKey    string
	BaseURL   string
	PageLimit int

	// Sensor discovery.
	Center       openaq.Coordinate
	RadiusMeters int
	Parameter    string

	// Rate limiting and fetching.
	MaxRequestsPerMinute int
	FetchWindow          time.Duration
	FetchWorkers         int
	HTTPTimeout          time.Duration

	// Retention and persistence.
	Retention time.Duration
	DataFile  string

	// Aggregation.
	LocalOffset time.Duration

	// Server.
	ScheduleInterval time.Duration
	Port             string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.APIKey = os.Getenv("OPENAQ_API_KEY")
	cfg.BaseURL = getenvDefault("OPENAQ_BASE_URL", "https://api.openaq.org/v3")
	cfg.PageLimit = getenvInt("PAGE_LIMIT", 1000)

	lat, err := getenvFloat("LATITUDE", 27.702286)
	if err != nil {
		return nil, err
	}
	lon, err := getenvFloat("LONGITUDE", 85.319805)
	if err != nil {
		return nil, err
	}
	cfg.Center = openaq.Coordinate{Latitude: lat, Longitude: lon}
	cfg.RadiusMeters = getenvInt("RADIUS_METERS", 10000)
	cfg.Parameter = getenvDefault("PARAMETER", "pm25")

	cfg.MaxRequestsPerMinute = getenvInt("MAX_REQUESTS_PER_MINUTE", 50)
	cfg.FetchWorkers = getenvInt("FETCH_WORKERS", 4)

	cfg.FetchWindow, err = getenvDuration("FETCH_WINDOW", "24h")
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cfg.Retention, err = getenvDuration("RETENTION", "336h") // 14 days
	if err != nil {
		return nil, err
	}
	cfg.ScheduleInterval, err = getenvDuration("SCHEDULE_INTERVAL", "24h")
	if err != nil {
		return nil, err
	}

	cfg.DataFile = getenvDefault("DATA_FILE", "data/pm25_last_14_days.msgpack")

	cfg.LocalOffset, err = ParseUTCOffset(getenvDefault("LOCAL_UTC_OFFSET", "+05:45"))
	if err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// ParseUTCOffset parses a fixed local offset in the form "±HH:MM", e.g.
// "+05:45" for Nepal Time.
func ParseUTCOffset(s string) (time.Duration, error) {
	raw := s
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid LOCAL_UTC_OFFSET %q (want ±HH:MM)", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hours in LOCAL_UTC_OFFSET %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minutes in LOCAL_UTC_OFFSET %q", raw)
	}

	return sign * (time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
