package connection

import "time"

// Backoff defaults.
const (
	DefaultMaxAttempts    = 5
	DefaultBackoffBase    = time.Second
	DefaultBackoffMaxWait = 30 * time.Second
)

// Backoff computes retry delays. The first retry is immediate, later ones
// double from Base up to Max.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff returns 0s, 2s, 4s, 8s, 16s over five attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        DefaultBackoffBase,
		Max:         DefaultBackoffMaxWait,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Delay returns the wait before the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	wait := b.Base
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= b.Max || wait <= 0 {
			return b.Max
		}
	}
	return wait
}

// Exhausted reports whether attempts has used up the retry budget.
func (b Backoff) Exhausted(attempts int) bool {
	return attempts >= b.MaxAttempts
}
