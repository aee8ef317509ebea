// Package ratelimit paces requests on the client side before the API has to
// answer with 429.
//
// The Discord client uses a SlidingWindow sized from
// rate_limit.requests_per_minute. The download pool uses a TokenBucket to
// spread CDN fetches. Both implement Limiter, whose Wait honours context
// cancellation so a stopped run never blocks on pacing.
package ratelimit
