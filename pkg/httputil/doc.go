// Package httputil provides HTTP helpers shared by the registry and package
// index clients.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff. Only errors wrapped
// in [RetryableError] are retried; clients wrap network failures and 5xx
// responses, while 404s and decoding errors fail immediately:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return fetch(ctx)
//	})
//
// [RetryWithBackoff] uses 3 attempts starting at one second.
package httputil
