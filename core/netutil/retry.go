// Package netutil holds the outbound HTTP client shared by the Telegram
// transport and the data-fetch providers.
package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// ShouldRetry reports whether a transport error is transient: a dial
// failure, a timeout or a temporary network error. Cancellation is final.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
		var nested net.Error
		if errors.As(opErr.Err, &nested) && nested.Timeout() {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		return ShouldRetry(urlErr.Err)
	}
	return false
}

// RetryStatus reports whether an HTTP status is worth another attempt.
func RetryStatus(code int) bool {
	return code == 429 || code == 502 || code == 503 || code == 504
}

var errRetryBodyConsumed = errors.New("netutil: request body cannot be replayed")
