// Package retry re-runs operations that fail with transient errors.
//
// Network failures, rate limiting and 5xx responses are retried with
// exponential backoff; authentication, not-found and parsing failures are
// returned immediately. A Config with MaxAttempts of 1 runs the operation
// once, which is how collection runs are configured unless retries are
// requested.
//
//	cfg := retry.FromConfig(appConfig.Retry, log)
//	page, err := retry.DoWithResult(ctx, fetch, cfg)
package retry
