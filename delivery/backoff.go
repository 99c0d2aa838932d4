package delivery

import "time"

// DefaultMaxBackoff bounds a single retry delay.
const DefaultMaxBackoff = 24 * time.Hour

// Decision is what happens to a delivery after an attempt.
type Decision int

const (
	// Delivered means the attempt succeeded.
	Delivered Decision = iota

	// Retry means the attempt failed and another is scheduled.
	Retry

	// Exhausted means the attempt failed and it was the last one.
	Exhausted
)

func (d Decision) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Retry:
		return "retry"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Backoff computes exponential retry delays: base * 2^(attempt-1).
type Backoff struct {
	// Max caps a single delay. Zero uses DefaultMaxBackoff.
	Max time.Duration
}

// Delay returns the wait after the given (1-based) failed attempt.
func (b Backoff) Delay(base time.Duration, attempt int) time.Duration {
	limit := b.Max
	if limit <= 0 {
		limit = DefaultMaxBackoff
	}
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		if d >= limit/2 {
			return limit
		}
		d *= 2
	}
	if d > limit {
		return limit
	}
	return d
}

// Decide returns the decision for an attempt.
func (b Backoff) Decide(success bool, attempt, maxAttempts int) Decision {
	if success {
		return Delivered
	}
	if attempt < maxAttempts {
		return Retry
	}
	return Exhausted
}
