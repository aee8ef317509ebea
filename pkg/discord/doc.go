// Package discord is the HTTP transport for the Discord REST API and CDN.
//
// Every call returns a typed *errors.Error on failure, never a sentinel
// value. API calls carry the authorization token and configured agent from
// an immutable base header set; per-call headers such as Referer are merged
// into a copy. CDN downloads use a browser user agent and never send the
// token.
//
// Rate limits (HTTP 429, and 202 while the search index warms up) are
// retried with backoff, waiting at least as long as the server asks.
package discord
