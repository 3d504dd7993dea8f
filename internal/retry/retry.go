// Package retry encapsulates attempt counting and backoff delays for a
// single unit of work.
//
// Delays grow exponentially and are bounded above. They apply only between
// retries of the same unit, never serialized against other units' retries.
package retry

import (
	"context"
	"time"

	"github.com/SinghAman21/silentparcel-uploader/errors"
)

// Defaults for the retry policy.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1000 * time.Millisecond
	DefaultMaxDelay    = 10000 * time.Millisecond
)

// Policy describes how a failing unit of work is retried.
//
// The zero value is not usable; construct with Default or fill every field.
// All fields are immutable after construction, so a Policy is safe to share
// across goroutines.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first
	MaxAttempts int

	// BaseDelay seeds the exponential backoff schedule
	BaseDelay time.Duration

	// MaxDelay bounds the schedule from above
	MaxDelay time.Duration
}

// Default returns the standard policy: 3 attempts, 1s base, 10s cap.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Delay returns the wait before the given attempt number (attempt >= 2):
// min(base * 2^(attempt-1), cap). The first attempt has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs op up to MaxAttempts times, sleeping the backoff delay between
// attempts. Only retryable errors (network, server) are retried; any other
// error is returned immediately. Cancellation is observed at every sleep,
// so an aborted unit stops attempting as soon as the cancellation is seen.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(p.Delay(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		err = op(ctx)
		if err == nil {
			return nil
		}
		if !errors.IsRetryable(err) {
			return err
		}
	}
	return err
}
