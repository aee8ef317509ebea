package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "dscraper/pkg/errors"
	"dscraper/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error


// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	Backoff     BackoffStrategy
	// BackoffFor, when set, overrides Backoff with a strategy chosen per failure.
	BackoffFor func(err error) BackoffStrategy
	RetryIf    func(error) bool
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// DefaultRetryIf retries typed errors the taxonomy marks retryable and never
// retries cancellation
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var typed *errs.Error
	if errors.As(err, &typed) {
		return errs.IsRetryable(typed.Type)
	}
	return false
}

func (c *Config) delay(attempt int, err error) time.Duration {
	strategy := c.Backoff
	if c.BackoffFor != nil {
		strategy = c.BackoffFor(err)
	}

	var d time.Duration
	if strategy != nil {
		d = strategy.NextDelay(attempt)
	}
	// A server-provided wait is a floor, never shortened by jitter.
	if ra := errs.RetryAfterOf(err); ra > d {
		d = ra
	}
	return d
}

// Do executes op until it succeeds, fails with a non-retryable error, runs
// out of attempts, or ctx is cancelled
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			log.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt - 1,
				"last_error": lastErr.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}

		delay := cfg.delay(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", errors.Join(err, lastErr))
		}
	}
}

// HTTPRetrier retries API calls with a backoff chosen by failure type and
// honours Retry-After hints carried on rate limit errors
type HTTPRetrier struct {
	config  Config
	backoff *ErrorTypeBackoff
}

// NewHTTPRetrier creates a retrier for HTTP operations
func NewHTTPRetrier(maxAttempts int, backoff *ErrorTypeBackoff, log logger.Logger) *HTTPRetrier {
	if backoff == nil {
		backoff = NewErrorTypeBackoff(time.Second, time.Minute, 2.0)
	}
	return &HTTPRetrier{
		config: Config{
			MaxAttempts: maxAttempts,
			BackoffFor:  backoff.For,
			RetryIf:     DefaultRetryIf,
			Logger:      log,
		},
		backoff: backoff,
	}
}

// WithOnRetry returns a copy that calls fn before every wait
func (hr *HTTPRetrier) WithOnRetry(fn func(attempt int, err error, delay time.Duration)) *HTTPRetrier {
	clone := *hr
	clone.config.OnRetry = fn
	return &clone
}

// Do executes op with error-type specific backoff
func (hr *HTTPRetrier) Do(ctx context.Context, op Operation) error {
	cfg := hr.config
	return Do(ctx, op, &cfg)
}
