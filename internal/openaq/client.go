package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ktmair/pm25-pipeline/internal/ratelimit"
)

// DefaultPageLimit is the page size requested from the API.
const DefaultPageLimit = 1000

// StatusError reports a non-2xx response from the API. Requests are not
// retried; a StatusError fails the whole pipeline run before anything is
// committed.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openaq: unexpected status %d for %s", e.StatusCode, e.URL)
}

// Config bundles the client dependencies.
type Config struct {
	BaseURL    string
	APIKey     string
	PageLimit  int
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter
}

// Client talks to an OpenAQ v3-shaped API. Every request passes through the
// shared rate limiter first, and the client keeps a request counter for run
// statistics. One Client instance is shared by all workers in a run.
type Client struct {
	baseURL   string
	apiKey    string
	pageLimit int
	http      *http.Client
	limiter   *ratelimit.Limiter
	circuit   *gobreaker.CircuitBreaker
	requests  atomic.Int64
}

// NewClient creates a Client. Missing config fields fall back to defaults:
// the public OpenAQ base URL, the default page limit, and a 30-second HTTP
// client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openaq.org/v3"
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(50, time.Minute)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openaq",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		pageLimit: cfg.PageLimit,
		http:      cfg.HTTPClient,
		limiter:   cfg.Limiter,
		circuit:   cb,
	}
}

// Requests returns the number of HTTP requests issued so far.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// getJSON performs one rate-limited GET and decodes the response body into
// out. Non-2xx responses return a *StatusError.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.requests.Add(1)

	body, err := c.circuit.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, resp.Body)
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: u}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(body.([]byte), out)
}

// fetchAll drains a paginated endpoint, issuing GETs with an increasing page
// number. Pagination stops on an empty page, or early on a page shorter than
// the page limit so a trailing empty-page request is not needed.
func fetchAll[T any](ctx context.Context, c *Client, path string, params url.Values) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("limit", strconv.Itoa(c.pageLimit))
		q.Set("page", strconv.Itoa(page))

		var payload struct {
			Results []T `json:"results"`
		}
		if err := c.getJSON(ctx, path, q, &payload); err != nil {
			return nil, err
		}

		if len(payload.Results) == 0 {
			break
		}
		all = append(all, payload.Results...)
		if len(payload.Results) < c.pageLimit {
			break
		}
	}
	return all, nil
}
