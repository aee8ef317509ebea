// Package retry provides backoff strategies and a retry loop for transient
// API failures.
//
// Only errors the errors package marks retryable are retried: transport
// failures, rate limits and 5xx responses. A rate limit error carrying a
// Retry-After hint waits at least that long.
//
//	r := retry.NewHTTPRetrier(5, retry.NewErrorTypeBackoff(time.Second, time.Minute, 2), log)
//	err := r.Do(ctx, func(ctx context.Context) error {
//		return client.fetch(ctx, req)
//	})
package retry
