// Package resilience retries transient failures with exponential backoff.
//
// Sources use it to reopen files and archives on flaky storage before the
// failure is surfaced as a stream error:
//
//	h, err := resilience.Retry(ctx, cfg, func() (SourceHandle, error) {
//	    return inner.Open(ctx)
//	})
//
// Errors already classified as configuration, checkpoint or record errors
// are never retried; only unclassified and stream errors are.
package resilience
