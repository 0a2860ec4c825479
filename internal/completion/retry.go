package completion

import (
	"context"
	"time"
)

// Policy configures completion retries: an attempt cap plus a backoff
// schedule. It lives apart from the transport call so the schedule is
// testable on its own.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff returns the delay before retry k (k starts at 1).
	Backoff func(retry int) time.Duration
}

// DefaultPolicy is five attempts with exponential backoff capped at 10s:
// the delay before retry k is min(1s * 2^k, 10s), no jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Backoff:     ExpBackoff(time.Second, 10*time.Second),
	}
}

// ExpBackoff returns a backoff function base*2^k capped at max.
func ExpBackoff(base, max time.Duration) func(int) time.Duration {
	return func(retry int) time.Duration {
		if retry < 0 {
			retry = 0
		}
		d := base
		for i := 0; i < retry; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
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
