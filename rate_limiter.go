// rate_limiter.go
// ----------------
// RateLimiter remembers the backend's advertised rate-limit window and lets the
// executor hold requests back while the window is exhausted. It never retries
// anything: a 429 is still surfaced to the caller as a client error.
//
// Responsibilities:
// - Parsing X-RateLimit-Limit / -Remaining / -Reset and Retry-After headers.
// - Answering whether a request can proceed immediately.
// - Waiting, context-aware, until the reset time passes.
// - Optionally pacing sends with a client-side token bucket.
package authbridge

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/opengovern/authbridge/internal"
)

type RateLimiter struct {
	mu   sync.Mutex
	info *NormalizedRateLimitInfo
	now  func() time.Time

	throttle *rate.Limiter // nil means unpaced
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now}
}

// SetClientLimit paces every send to rps requests per second with the given
// burst. A non-positive rps removes the limit.
func (r *RateLimiter) SetClientLimit(rps float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rps <= 0 {
		r.throttle = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	r.throttle = rate.NewLimiter(rate.Limit(rps), burst)
}

// Throttle blocks until the client-side limit admits one more send.
func (r *RateLimiter) Throttle(ctx context.Context) error {
	r.mu.Lock()
	throttle := r.throttle
	r.mu.Unlock()
	if throttle == nil {
		return nil
	}
	if err := throttle.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// The limiter refuses up front when the wait would outlive ctx.
		return fmt.Errorf("client rate limit: %w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

// ParseRateLimitInfo extracts rate-limit state from a response, or nil if the
// backend sent none. Header keys are expected lower-cased.
func ParseRateLimitInfo(resp *NormalizedResponse, now time.Time) *NormalizedRateLimitInfo {
	if resp == nil || len(resp.Headers) == 0 {
		return nil
	}
	info := &NormalizedRateLimitInfo{}
	found := false

	if v, ok := resp.Headers["x-ratelimit-limit"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			info.MaxRequests = &n
			found = true
		}
	}
	if v, ok := resp.Headers["x-ratelimit-remaining"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			info.RemainingRequests = &n
			found = true
		}
	}
	if v, ok := resp.Headers["x-ratelimit-reset"]; ok {
		if ms := internal.ParseResetHeader(v, now); ms > 0 {
			info.ResetRequestsAt = &ms
			found = true
		}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if ms := internal.ParseRetryAfter(resp.Headers["retry-after"], now); ms > 0 {
			zero := 0
			info.RemainingRequests = &zero
			info.ResetRequestsAt = &ms
			found = true
		}
	}

	if !found {
		return nil
	}
	return info
}

// Update stores the latest info. A nil info leaves the previous state intact.
func (r *RateLimiter) Update(info *NormalizedRateLimitInfo) {
	if info == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info = info
}

// canProceed returns false while the window is exhausted and not yet reset.
func (r *RateLimiter) canProceed() bool {
	return r.delayBeforeNextRequest() == 0
}

func (r *RateLimiter) delayBeforeNextRequest() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := r.info
	if info == nil || info.RemainingRequests == nil || *info.RemainingRequests > 0 || info.ResetRequestsAt == nil {
		return 0
	}
	now := r.now()
	if !internal.IsInFuture(*info.ResetRequestsAt, now) {
		return 0
	}
	return time.Duration(*info.ResetRequestsAt-now.UnixMilli()) * time.Millisecond
}

// Wait blocks until the backend window allows another request or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	delay := r.delayBeforeNextRequest()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetRateLimitInfo returns a copy of the last known info, or nil.
func (r *RateLimiter) GetRateLimitInfo() *NormalizedRateLimitInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.info == nil {
		return nil
	}
	copyInfo := *r.info
	return &copyInfo
}
