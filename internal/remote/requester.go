package remote

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy is the data half of the requester: how many extra attempts to
// make and how long to pause. It carries no behavior so tests can exercise
// backoff math without an HTTP call in sight.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// MinInterval is slept before every attempt, success or not, so the
	// remote API is never hit in a burst.
	MinInterval time.Duration
	// NetworkBackoff is the base of the linear backoff applied between
	// network-error retries: retry n waits n * NetworkBackoff.
	NetworkBackoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		MinInterval:    100 * time.Millisecond,
		NetworkBackoff: time.Second,
	}
}

// RetryDelay returns the pause before retry attempt n (1-based) for the given
// classification, and whether the error is retriable at all. A rate-limit
// hint from the server is authoritative over the backoff schedule.
func (p RetryPolicy) RetryDelay(n int, info *ErrorInfo) (time.Duration, bool) {
	switch info.Type {
	case ErrorTypeRateLimit:
		d := info.RetryAfter
		if d <= 0 {
			d = DefaultRetryAfter
		}
		return d, true
	case ErrorTypeNetwork:
		return time.Duration(n) * p.NetworkBackoff, true
	default:
		return 0, false
	}
}

// Requester wraps outbound calls with the minimum inter-request delay and
// bounded retry defined by its policy.
type Requester struct {
	Policy RetryPolicy
	Logger *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRequester(policy RetryPolicy, logger *zap.Logger) *Requester {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.MinInterval <= 0 {
		policy.MinInterval = 100 * time.Millisecond
	}
	if policy.NetworkBackoff <= 0 {
		policy.NetworkBackoff = time.Second
	}
	return &Requester{Policy: policy, Logger: logger, sleep: sleepCtx}
}

// Execute runs fn, retrying per policy. Rate-limit errors wait the
// server-supplied hint, network errors back off linearly, everything else
// propagates immediately. Once attempts are exhausted the last error is
// returned unchanged so callers keep the original failure facts.
func (r *Requester) Execute(ctx context.Context, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 0; attempt <= r.Policy.MaxRetries; attempt++ {
		if err := sleep(ctx, r.Policy.MinInterval); err != nil {
			return nil, err
		}
		body, err := fn(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt == r.Policy.MaxRetries {
			break
		}
		info := Classify(err)
		delay, retriable := r.Policy.RetryDelay(attempt+1, info)
		if !retriable {
			return nil, err
		}
		if r.Logger != nil {
			r.Logger.Warn("retrying request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", r.Policy.MaxRetries),
				zap.String("error_type", string(info.Type)),
				zap.Duration("delay", delay),
				zap.String("cause", info.Message),
			)
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
