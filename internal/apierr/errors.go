// Package apierr provides shared error sentinels and retry infrastructure
// for the provider adapters (transcription, enrichment, synthesis). All
// provider-specific error types are classified into these sentinels at the
// adapter boundary.
//
// Providers map HTTP status codes to these errors using fmt.Errorf("%s: %w", msg, sentinel).
// Callers check with errors.Is(err, apierr.ErrRateLimit) etc.
package apierr

import "errors"

// Sentinel errors for API interaction failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")

	// ErrMalformedOutput indicates the provider rejected or returned output the
	// adapter could not use (invalid synthesis markup, unparseable JSON).
	// Not retried with backoff; the caller retries once with a plain request
	// and then falls back.
	ErrMalformedOutput = errors.New("malformed provider output")

	// ErrAllProvidersFailed indicates every provider in a fallback chain failed.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// IsRetryable reports whether an error is transient and worth a backoff retry.
// Rate limits and timeouts are retryable; auth failures, quota exhaustion,
// malformed output, and everything unclassified are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}
