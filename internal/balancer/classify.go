package balancer

import (
	"net/http"
	"strconv"
)

type outcome int

const (
	// outcomeRetryable throttles the backend and retries another one.
	outcomeRetryable outcome = iota
	// outcomeSuccess returns the response and counts the call.
	outcomeSuccess
	// outcomeFailure returns the response unchanged without retrying.
	outcomeFailure
)

// defaultRetryAfterSeconds is used when a throttling response carries no
// parseable wait hint, and for transport-level dispatch faults.
const defaultRetryAfterSeconds = 10

// classify maps a backend status code onto the retry decision: 429 and all
// 5xx are retryable, 200-399 succeed, everything else fails terminally.
func classify(statusCode int) outcome {
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return outcomeRetryable
	case statusCode >= 200 && statusCode <= 399:
		return outcomeSuccess
	default:
		return outcomeFailure
	}
}

// retryAfterSeconds extracts the throttle delay from a retryable response.
// Retry-After wins over x-ratelimit-reset-requests; a header must parse to
// a non-negative integer to count, otherwise the default applies.
func retryAfterSeconds(header http.Header) int {
	for _, key := range []string{"Retry-After", "x-ratelimit-reset-requests"} {
		value := header.Get(key)
		if value == "" {
			continue
		}

		seconds, err := strconv.Atoi(value)
		if err != nil || seconds < 0 {
			continue
		}

		return seconds
	}

	return defaultRetryAfterSeconds
}
