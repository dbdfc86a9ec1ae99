package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"google.golang.org/api/googleapi"
)

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Google API reason codes that signal rate limiting, quota pressure or a
// transient backend fault.
var retryableReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"backendError":          true,
	"internalError":         true,
}

var retryablePhrases = []string{
	"rate limit",
	"ratelimit",
	"rate_limit",
	"quota",
	"too many requests",
}

// IsRetryable reports whether err looks transient: a network fault, a 429 or
// 5xx gateway status, a Google rate/quota/backend reason, or, when no
// structured data is available, a message mentioning quota or rate limits.
// Cancellation of the caller's context is never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if retryableStatus[apiErr.Code] {
			return true
		}
		for _, item := range apiErr.Errors {
			if retryableReasons[item.Reason] {
				return true
			}
		}
		return mentionsRateLimit(apiErr.Message)
	}

	if isNetworkError(err) {
		return true
	}

	var status interface{ StatusCode() int }
	if errors.As(err, &status) && retryableStatus[status.StatusCode()] {
		return true
	}

	return mentionsRateLimit(err.Error())
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func mentionsRateLimit(msg string) bool {
	msg = strings.ToLower(msg)
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
