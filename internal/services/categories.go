package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Category is the user-facing failure class shown in terminal messages.
type Category string

const (
	CategoryNetwork            Category = "network"
	CategoryRateLimit          Category = "rate_limit"
	CategoryAuth               Category = "auth"
	CategoryServiceUnavailable Category = "service_unavailable"
	CategoryTimeout            Category = "timeout"
	CategoryInvalidInput       Category = "invalid_input"
	CategoryCanceled           Category = "canceled"
	CategoryGeneric            Category = "generic"
)

var (
	// statusCodePattern only matches codes standing alone, so "4000ms" or
	// "2401 bytes" never read as a status.
	statusCodePattern = regexp.MustCompile(`\b[45]\d\d\b`)

	rateLimitPatterns   = []string{"rate limit", "rate-limit", "too many requests", "quota"}
	authPatterns        = []string{"unauthorized", "forbidden", "api key", "invalid token", "authentication"}
	unavailablePatterns = []string{"service unavailable", "bad gateway", "internal server error", "overloaded"}
	timeoutPatterns     = []string{"timeout", "timed out", "deadline exceeded"}
	networkPatterns     = []string{"network", "connection reset", "connection refused", "econnreset", "econnrefused", "no such host", "broken pipe", "eof", "fetch failed"}
	invalidPatterns     = []string{"invalid", "validation", "not found", "malformed", "required"}
)

// Categorize maps any error onto the user-facing category set.
func Categorize(err error) Category {
	if err == nil {
		return CategoryGeneric
	}
	if errors.Is(err, context.Canceled) {
		return CategoryCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return CategoryTimeout
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration) {
		return CategoryInvalidInput
	}
	if code, ok := StatusCode(err); ok {
		switch {
		case code == http.StatusTooManyRequests:
			return CategoryRateLimit
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return CategoryAuth
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return CategoryTimeout
		case code >= http.StatusInternalServerError:
			return CategoryServiceUnavailable
		case code >= http.StatusBadRequest:
			return CategoryInvalidInput
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	msg := strings.ToLower(err.Error())
	codes := MessageStatusCodes(msg)
	switch {
	case slices.Contains(codes, http.StatusTooManyRequests) || containsAny(msg, rateLimitPatterns):
		return CategoryRateLimit
	case slices.Contains(codes, http.StatusUnauthorized) || slices.Contains(codes, http.StatusForbidden) || containsAny(msg, authPatterns):
		return CategoryAuth
	case containsAny(msg, timeoutPatterns):
		return CategoryTimeout
	case hasServerCode(codes) || containsAny(msg, unavailablePatterns):
		return CategoryServiceUnavailable
	case containsAny(msg, networkPatterns):
		return CategoryNetwork
	case len(codes) > 0 || containsAny(msg, invalidPatterns):
		return CategoryInvalidInput
	}
	return CategoryGeneric
}

// UserMessage returns a one-line failure summary and a suggested remedy.
func UserMessage(err error) (string, string) {
	switch Categorize(err) {
	case CategoryNetwork:
		return "A network problem interrupted generation.", "Check your connection and try again."
	case CategoryRateLimit:
		return "The AI service is rate limiting requests.", "Wait a minute and retry."
	case CategoryAuth:
		return "An AI or storage service rejected the credentials.", "Check the configured API keys."
	case CategoryServiceUnavailable:
		return "An external service is temporarily unavailable.", "Retry in a few minutes."
	case CategoryTimeout:
		return "Generation took too long and timed out.", "Retry, or shorten the script and deck."
	case CategoryInvalidInput:
		return "The webinar input is incomplete or invalid.", "Review the slides and script, then retry."
	case CategoryCanceled:
		return "Generation was canceled.", "Start the run again when ready."
	default:
		return "Generation failed unexpectedly.", "Retry; if it keeps failing, check the logs."
	}
}

func containsAny(msg string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// MessageStatusCodes returns the 4xx and 5xx status codes that appear as
// standalone numbers in msg.
func MessageStatusCodes(msg string) []int {
	matches := statusCodePattern.FindAllString(msg, -1)
	codes := make([]int, 0, len(matches))
	for _, m := range matches {
		if code, err := strconv.Atoi(m); err == nil {
			codes = append(codes, code)
		}
	}
	return codes
}

func hasServerCode(codes []int) bool {
	for _, code := range codes {
		if code >= http.StatusInternalServerError {
			return true
		}
	}
	return false
}
