// Package retry provides the bounded exponential backoff policy used by the
// platform publishers. Delays are fixed (no jitter) so attempt timing is
// predictable, and every wait honours context cancellation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy describes a bounded exponential backoff.
type Policy struct {
	// InitialWait is slept once before the first attempt.
	InitialWait time.Duration
	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration
	// Multiplier grows the delay between subsequent attempts. Values below 1 mean 1.
	Multiplier float64
	// MaxDelay caps a single delay. Zero means no cap.
	MaxDelay time.Duration
	// MaxAttempts is the total number of attempts. Values below 1 mean 1.
	MaxAttempts int
}

// Immediate returns a policy that retries attempts times without waiting.
func Immediate(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Multiplier: 1}
}

// Attempts returns the effective attempt ceiling.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait after the given failed attempt (1-based):
// BaseDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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

// ErrExhausted is wrapped by Do when every attempt failed with a retryable error.
var ErrExhausted = errors.New("retry attempts exhausted")

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. fn reports whether its error is worth retrying.
// On exhaustion the last error is returned wrapped with ErrExhausted.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context, attempt int) (retryable bool, err error)) error {
	if err := Sleep(ctx, p.InitialWait); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= p.Attempts(); attempt++ {
		retryable, err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
		if attempt == p.Attempts() {
			break
		}

		delay := p.Delay(attempt)
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("Attempt failed, retrying")
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return &exhaustedError{attempts: p.Attempts(), err: lastErr}
}

type exhaustedError struct {
	attempts int
	err      error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.attempts, e.err)
}

func (e *exhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.err}
}
