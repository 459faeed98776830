package expand

import (
	"context"
	"math"
	"time"

	flowgraph "github.com/goliatone/go-flowgraph"
)

// BackoffStrategy decides how long to wait before retry attempt n. Attempts
// start at 0.
type BackoffStrategy interface {
	SleepDuration(attempt int, err error) time.Duration
}

// NoDelay retries immediately.
type NoDelay struct{}

func (NoDelay) SleepDuration(int, error) time.Duration { return 0 }

// ExponentialBackoff waits Base * Factor^attempt, capped at Max when set.
type ExponentialBackoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

func (e ExponentialBackoff) SleepDuration(attempt int, _ error) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := e.Factor
	if factor <= 0 {
		factor = 1
	}
	delay := float64(e.Base) * math.Pow(factor, float64(attempt))
	if e.Max > 0 && time.Duration(delay) > e.Max {
		return e.Max
	}
	return time.Duration(delay)
}

// RetryFetcher retries failed fetches. A missing workflow is not retried.
type RetryFetcher struct {
	Fetcher    Fetcher
	MaxRetries int
	Backoff    BackoffStrategy
	Logger     flowgraph.Logger
}

func (r RetryFetcher) FetchWorkflow(ctx context.Context, id string) (*flowgraph.Document, error) {
	backoff := r.Backoff
	if backoff == nil {
		backoff = NoDelay{}
	}
	logger := flowgraph.NormalizeLogger(r.Logger)

	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		doc, err := r.Fetcher.FetchWorkflow(ctx, id)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if attempt == r.MaxRetries || ctx.Err() != nil {
			break
		}
		wait := backoff.SleepDuration(attempt, err)
		logger.Debug("fetch workflow %s failed (attempt %d), retrying in %s: %v", id, attempt+1, wait, err)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
