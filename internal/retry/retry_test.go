package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type hintedErr struct{ after time.Duration }

func (e hintedErr) Error() string              { return "throttled" }
func (e hintedErr) RetryAfter() time.Duration { return e.after }

func fastConfig(retries int) Config {
	return Config{
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func always(error) bool { return true }

func TestDo_Success(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), always, func(ctx context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Do() returned error = %v, want nil", err)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_PermanentError(t *testing.T) {
	attempts := 0
	permanent := errors.New("permanent")
	classifier := func(err error) bool { return !errors.Is(err, permanent) }

	err := Do(context.Background(), fastConfig(3), classifier, func(ctx context.Context) error {
		attempts++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Errorf("Do() returned error = %v, want %v", err, permanent)
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), always, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() returned error = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("Do() made %d attempts, want 3", attempts)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	attempts := 0
	flaky := errors.New("flaky")
	err := Do(context.Background(), fastConfig(2), always, func(ctx context.Context) error {
		attempts++
		return flaky
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Do() returned %T, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("ExhaustedError.Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(err, flaky) {
		t.Error("ExhaustedError should unwrap to the last error")
	}
	if attempts != 3 {
		t.Errorf("Do() made %d attempts, want 3", attempts)
	}
}

func TestDo_NilClassifierDoesNotRetry(t *testing.T) {
	attempts := 0
	_ = Do(context.Background(), fastConfig(3), nil, func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDo_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, Config{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour, Multiplier: 2}, always,
		func(ctx context.Context) error {
			attempts++
			cancel()
			return errors.New("flaky")
		})

	if err == nil {
		t.Fatal("Do() should fail once the context is canceled")
	}
	if attempts != 1 {
		t.Errorf("Do() made %d attempts, want 1", attempts)
	}
}

func TestDelay_HonoursRetryAfterWithinCap(t *testing.T) {
	cfg := Config{InitialBackoff: time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}

	got := delay(time.Millisecond, cfg, hintedErr{after: 500 * time.Millisecond})
	if got != 500*time.Millisecond {
		t.Errorf("delay() = %v, want the 500ms Retry-After hint", got)
	}

	got = delay(time.Millisecond, cfg, hintedErr{after: time.Minute})
	if got != time.Second {
		t.Errorf("delay() = %v, want hint capped at MaxBackoff", got)
	}
}

func TestJitter_StaysWithinFraction(t *testing.T) {
	for i := 0; i < 100; i++ {
		j := jitter(time.Second, 0.2)
		if j < -200*time.Millisecond || j > 200*time.Millisecond {
			t.Fatalf("jitter() = %v, outside +/-20%%", j)
		}
	}
	if jitter(time.Second, 0) != 0 {
		t.Error("jitter() with zero fraction should be 0")
	}
}
