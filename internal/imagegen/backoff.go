package imagegen

import (
	"context"
	"math"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second

	maxShift = 30
)

// Backoff is an exponential schedule without jitter.
type Backoff struct {
	MaxRetries   int
	InitialDelay time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{MaxRetries: DefaultMaxRetries, InitialDelay: DefaultInitialDelay}
}

// MaxAttempts counts the first attempt plus every retry.
func (b Backoff) MaxAttempts() int {
	if b.MaxRetries < 0 {
		return 1
	}
	return b.MaxRetries + 1
}

// Delay is the wait before the next attempt once failures attempts have
// failed: InitialDelay * 2^(failures-1), saturating at the largest
// time.Duration.
func (b Backoff) Delay(failures int) time.Duration {
	if failures < 1 || b.InitialDelay <= 0 {
		return 0
	}
	shift := failures - 1
	if shift > maxShift {
		shift = maxShift
	}
	if b.InitialDelay > time.Duration(math.MaxInt64>>shift) {
		return time.Duration(math.MaxInt64)
	}
	return b.InitialDelay << shift
}

// Sleeper blocks for d. Tests swap it for a recorder so no real time passes.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
