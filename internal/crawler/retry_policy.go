package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// DefaultMaxAttempts bounds the number of GETs issued for a single URL.
const DefaultMaxAttempts = 5

// ExponentialBackoff computes jittered delays between fetch attempts. A zero
// base delay disables waiting entirely.
type ExponentialBackoff struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewExponentialBackoff builds a backoff capped at maxDelay.
func NewExponentialBackoff(baseDelay, maxDelay time.Duration) *ExponentialBackoff {
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &ExponentialBackoff{
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// Delay returns the wait before the attempt following the given zero-based attempt.
func (p *ExponentialBackoff) Delay(attempt int) time.Duration {
	if p == nil || p.baseDelay <= 0 {
		return 0
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

// Retryable reports whether a transport error is worth another attempt. A
// per-request timeout is retried; the caller's own context ending never is.
func Retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
