// Package backoff holds the pacing and retry primitives shared by the
// pipeline stages. Every pause goes through a Sleeper so callers can count or
// skip waits in tests.
package backoff

import (
	"context"
	"sync"
	"time"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the production Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry calls fn up to attempts times, waiting base × attempt between tries.
// fn receives the 1-based attempt number. The last error is returned.
func Retry(ctx context.Context, attempts int, base time.Duration, sleep Sleeper, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, base*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

// Recorder is a Sleeper that records requested pauses without waiting.
type Recorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

// Sleep records d and returns immediately.
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.pauses = append(r.pauses, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Pauses returns a copy of the recorded pauses.
func (r *Recorder) Pauses() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.pauses))
	copy(out, r.pauses)
	return out
}
