// Package retry runs an operation with bounded attempts and exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy bounds the attempts and the wait between them.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64 // 0.2 means the wait varies by up to ±20%
}

// DefaultPolicy returns two attempts with a short pause in between.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    2,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2,
		JitterFraction: 0.2,
	}
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, classify rejects its error, the attempts run
// out, or ctx is done. Errors classify rejects are returned unwrapped.
func Do(ctx context.Context, policy Policy, classify Classifier, fn func(context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if classify == nil || !classify(err) {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if err := wait(ctx, policy.Backoff(attempt)); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}
	}

	return &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Backoff returns the wait after the given 1-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if p.MaxBackoff > 0 && delay >= float64(p.MaxBackoff) {
			delay = float64(p.MaxBackoff)
			break
		}
	}

	if p.JitterFraction > 0 {
		delay += delay * p.JitterFraction * (2*rand.Float64() - 1)
	}
	if p.MaxBackoff > 0 && delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

func wait(ctx context.Context, d time.Duration) error {
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
