package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{6, 1 * time.Second},
	}

	for _, test := range tests {
		if delay := backoff.NextDelay(test.attempt); delay != test.expected {
			t.Errorf("Attempt %d: expected %v, got %v", test.attempt, test.expected, delay)
		}
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("Jittered delay %v outside [140ms, 260ms]", delay)
		}
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeTransport, "connection reset")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
	}

	if err := Do(context.Background(), op, cfg); err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	failure := errs.FromStatus(503, "unavailable")
	op := func(context.Context) error {
		attempts++
		return failure
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
	}

	err := Do(context.Background(), op, cfg)
	if !errors.Is(err, failure) {
		t.Errorf("Expected wrapped server error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	notFound := errs.FromStatus(404, "unknown channel")

	op := func(context.Context) error {
		attempts++
		return notFound
	}

	err := Do(context.Background(), op, &Config{MaxAttempts: 5, Backoff: &ConstantBackoff{Delay: time.Millisecond}})
	if err != notFound {
		t.Errorf("Expected not found error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestUntypedErrorsAreNotRetried(t *testing.T) {
	attempts := 0
	op := func(context.Context) error {
		attempts++
		return errors.New("plain")
	}

	_ = Do(context.Background(), op, &Config{MaxAttempts: 3, Backoff: &ConstantBackoff{Delay: time.Millisecond}})
	if attempts != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	op := func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errs.New(errs.ErrorTypeTransport, "timeout")
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 100 * time.Millisecond},
	}

	err := Do(ctx, op, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts before cancellation, got %d", attempts)
	}
}

func TestRetryAfterIsAFloor(t *testing.T) {
	var delays []time.Duration
	attempts := 0
	op := func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429, RetryAfter: 30 * time.Millisecond}
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		OnRetry: func(_ int, _ error, d time.Duration) {
			delays = append(delays, d)
		},
	}

	start := time.Now()
	if err := Do(context.Background(), op, cfg); err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if len(delays) != 1 || delays[0] != 30*time.Millisecond {
		t.Errorf("Expected a single 30ms wait, got %v", delays)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("Expected Do to wait for Retry-After")
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff(time.Second, time.Minute, 2)

	rl, ok := etb.For(errs.FromStatus(429, "slow down")).(*ExponentialBackoff)
	if !ok || rl.BaseDelay != 2*time.Second {
		t.Errorf("Expected rate limit backoff with 2s base, got %+v", rl)
	}
	tr, ok := etb.For(errs.New(errs.ErrorTypeTransport, "reset")).(*ExponentialBackoff)
	if !ok || tr.BaseDelay != time.Second {
		t.Errorf("Expected transport backoff with 1s base, got %+v", tr)
	}
	if etb.For(errors.New("other")) != etb.DefaultBackoff {
		t.Error("Expected default backoff for untyped errors")
	}
}

func TestHTTPRetrier(t *testing.T) {
	fast := &ErrorTypeBackoff{
		TransportBackoff:   &ConstantBackoff{Delay: time.Millisecond},
		RateLimitBackoff:   &ConstantBackoff{Delay: time.Millisecond},
		ServerErrorBackoff: &ConstantBackoff{Delay: time.Millisecond},
		DefaultBackoff:     &ConstantBackoff{Delay: time.Millisecond},
	}

	retries := 0
	r := NewHTTPRetrier(4, fast, logger.NewNopLogger()).WithOnRetry(func(int, error, time.Duration) {
		retries++
	})

	attempts := 0
	err := r.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.FromStatus(429, "rate limited")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if retries != 2 {
		t.Errorf("Expected 2 retries, got %d", retries)
	}
}
