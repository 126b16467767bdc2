// Package retry runs remote calls with bounded exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps every delay, including server-provided Retry-After hints.
	MaxBackoff time.Duration
	// Multiplier grows the backoff after each attempt.
	Multiplier float64
	// JitterFraction is the fraction of backoff used for jitter (0.0-1.0).
	JitterFraction float64
}

// DefaultConfig returns the defaults used for Graph calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Classifier reports whether an error is worth another attempt.
type Classifier func(error) bool

// Never retries nothing. Useful for callers that want Do's error wrapping only.
func Never(error) bool { return false }

// AfterHinter is implemented by errors that carry a server-requested delay.
type AfterHinter interface {
	RetryAfter() time.Duration
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// context ends, or MaxRetries retries have been spent.
func Do(ctx context.Context, cfg Config, classify Classifier, fn func(context.Context) error) error {
	if classify == nil {
		classify = Never
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		// A per-request timeout may be retried; the caller's own context may not.
		if ctx.Err() != nil {
			return err
		}
		if !classify(err) {
			return err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		sleep := delay(backoff, cfg, err)
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxRetries + 1, Err: lastErr}
}

func delay(backoff time.Duration, cfg Config, err error) time.Duration {
	sleep := backoff + jitter(backoff, cfg.JitterFraction)

	var hint AfterHinter
	if errors.As(err, &hint) && hint.RetryAfter() > sleep {
		sleep = hint.RetryAfter()
	}
	if cfg.MaxBackoff > 0 && sleep > cfg.MaxBackoff {
		sleep = cfg.MaxBackoff
	}
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

// jitter returns a random duration in range [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	span := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * span)
}
