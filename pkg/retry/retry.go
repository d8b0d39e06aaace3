package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// NonRetryableError stops Do early: the wrapped error comes back to the
// caller without further attempts.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks an error as not worth retrying.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err carries the NonRetryable marker.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config shapes a backoff schedule.
type Config struct {
	MaxAttempts  int           // total attempts Do makes, first one included
	InitialDelay time.Duration // delay after the first failure
	MaxDelay     time.Duration // schedule ceiling
	Multiplier   float64       // growth per attempt, typically 2.0
	AddJitter    bool          // spread synchronized retries apart
}

// DefaultConfig suits short operations against a live dependency.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Quick is tuned for component startup: many fast attempts with a low
// delay ceiling.
func Quick() Config {
	return Config{
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Persistent is for resources that must eventually come up, such as
// broker connections.
func Persistent() Config {
	return Config{
		MaxAttempts:  30,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	return c
}

// Backoff produces the delay schedule for one retried operation. It is
// open-ended: callers that retry forever (reconnect loops) just keep
// calling Next, while Do applies MaxAttempts on top. Not safe for
// concurrent use.
type Backoff struct {
	cfg   Config
	delay time.Duration
}

// NewBackoff returns a schedule starting at cfg.InitialDelay.
func NewBackoff(cfg Config) *Backoff {
	return &Backoff{cfg: cfg.withDefaults()}
}

// Next returns the delay to sleep before the next attempt and advances
// the schedule.
func (b *Backoff) Next() time.Duration {
	if b.delay == 0 {
		b.delay = b.cfg.InitialDelay
	} else {
		next := time.Duration(float64(b.delay) * b.cfg.Multiplier)
		if next > b.cfg.MaxDelay || next < b.delay {
			next = b.cfg.MaxDelay
		}
		b.delay = next
	}

	d := b.delay
	if b.cfg.AddJitter && d/4 > 0 {
		// Up to 25% extra, so synchronized failures fan out.
		d += time.Duration(rand.Int63n(int64(d / 4)))
	}
	return d
}

// Reset rewinds the schedule to the initial delay, for callers that
// reuse one Backoff across successful reconnects.
func (b *Backoff) Reset() {
	b.delay = 0
}

// Do executes fn with exponential backoff until it succeeds, returns a
// non-retryable error, the context is cancelled, or MaxAttempts runs
// out.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg = cfg.withDefaults()
	backoff := NewBackoff(cfg)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(backoff.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
