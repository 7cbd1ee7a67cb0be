package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"lectern/internal/services"
)

var (
	nonRetryablePatterns = []string{
		"bad request", "unauthorized", "forbidden", "invalid api key", "api key required",
		"authentication", "not found", "validation", "invalid input", "content policy",
	}
	retryablePatterns = []string{
		"network", "timeout", "timed out", "econnreset", "econnrefused", "connection reset",
		"connection refused", "socket hang up", "eof", "fetch failed",
		"rate limit", "too many requests",
		"service unavailable", "bad gateway", "overloaded", "temporarily",
	}
)

// Retryable classifies an error. Cancellation is never retried; typed status
// codes and markers win over message text; unrecognized errors are retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) || errors.Is(err, services.ErrTransient) {
		return true
	}
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrConfiguration) || errors.Is(err, services.ErrNotFound) {
		return false
	}
	if code, ok := services.StatusCode(err); ok {
		switch {
		case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
			return true
		case code >= http.StatusInternalServerError:
			return true
		case code >= http.StatusBadRequest:
			return false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, code := range services.MessageStatusCodes(msg) {
		switch code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity:
			return false
		}
	}
	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(msg, pattern) {
			return false
		}
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return true
}

// IsAuth reports whether err is a credential rejection. Auth failures never
// fall back to an alternate target.
func IsAuth(err error) bool {
	return services.Categorize(err) == services.CategoryAuth
}
