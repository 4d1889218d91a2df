// internal/time_parser.go
// ------------------------
// Helpers for turning rate-limit response headers into absolute reset times.
//
// Functions:
// - ParseRetryAfter: Retry-After as delay-seconds or an HTTP date.
// - ParseResetHeader: X-RateLimit-Reset as unix seconds, unix ms, or a
//   relative duration such as "1s" or "6m0s".
// - IsInFuture: Check if a given timestamp (ms) is in the future.
package internal

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseRetryAfter returns the unix ms at which a Retry-After header expires,
// or 0 if the value cannot be parsed.
func ParseRetryAfter(value string, now time.Time) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return now.Add(time.Duration(secs) * time.Second).UnixMilli()
	}
	if at, err := http.ParseTime(value); err == nil {
		return at.UnixMilli()
	}
	return 0
}

// ParseResetHeader returns the unix ms encoded by a reset header, or 0.
// Integers below 1e11 are treated as unix seconds, larger ones as unix ms.
func ParseResetHeader(value string, now time.Time) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n <= 0 {
			return 0
		}
		if n < 100_000_000_000 {
			return n * 1000
		}
		return n
	}
	if d := ParseTimeStr(value); d > 0 {
		return now.Add(d).UnixMilli()
	}
	return 0
}

// ParseTimeStr converts strings like "1s", "6m0s" or "250ms" into a duration.
func ParseTimeStr(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// IsInFuture checks if a timestamp (in ms) is in the future relative to now.
func IsInFuture(ms int64, now time.Time) bool {
	return ms > now.UnixMilli()
}
