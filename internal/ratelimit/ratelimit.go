package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter caps the number of requests in any trailing window. It keeps a
// queue of request timestamps guarded by a mutex, so a single Limiter can be
// shared by concurrent workers; the window is tracked per limiter, not per
// caller.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	sent   []time.Time

	// Injectable for tests.
	nowFn   func() time.Time
	sleepFn func(context.Context, time.Duration) error
}

// New creates a Limiter allowing maxPerWindow requests per window.
// Non-positive arguments fall back to 50 requests per minute.
func New(maxPerWindow int, window time.Duration) *Limiter {
	if maxPerWindow <= 0 {
		maxPerWindow = 50
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		window:  window,
		max:     maxPerWindow,
		nowFn:   time.Now,
		sleepFn: sleepCtx,
	}
}

// Acquire blocks until issuing one more request would not exceed the cap in
// any trailing window, records the request timestamp, and returns. The only
// error condition is context cancellation while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.nowFn()

		// Discard timestamps that have aged out of the window.
		i := 0
		for i < len(l.sent) && now.Sub(l.sent[i]) >= l.window {
			i++
		}
		l.sent = l.sent[i:]

		if len(l.sent) < l.max {
			l.sent = append(l.sent, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.window - now.Sub(l.sent[0])
		l.mu.Unlock()

		if err := l.sleepFn(ctx, wait); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
