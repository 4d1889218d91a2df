package authbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

var errRenewalAborted = errors.New("token renewal aborted")

// RequestExecutor runs a logical request through the pipeline: token
// attachment, send, and the inbound state machine that decides between
// success, a single renewal-and-replay, and a terminal normalized error.
type RequestExecutor struct {
	sdk *AuthBridge
}

func NewRequestExecutor(sdk *AuthBridge) *RequestExecutor {
	return &RequestExecutor{sdk: sdk}
}

// Execute attaches the current session token and sends req.
func (re *RequestExecutor) Execute(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error) {
	re.attachToken(ctx, req)
	return re.sendAndHandle(ctx, req)
}

// attachToken is the outbound stage. A failed or empty lookup leaves the
// request without a fresh token; the backend's 401 then drives renewal.
func (re *RequestExecutor) attachToken(ctx context.Context, req *NormalizedRequest) {
	if req.Form != nil {
		// The adapter sets multipart/form-data with its own boundary.
		req.deleteHeader("Content-Type")
	}

	token, err := re.sdk.session.CurrentToken(ctx)
	if err != nil {
		re.sdk.logger.Warn("session token lookup failed",
			slog.String("request_id", req.RequestID),
			slog.String("endpoint", req.Endpoint),
			slog.Any("error", err))
		return
	}
	if token == "" {
		re.sdk.debugf("no session token for %s %s, sending unauthenticated", req.Method, req.Endpoint)
		return
	}
	req.setHeader("Authorization", "Bearer "+token)
}

func (re *RequestExecutor) sendAndHandle(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error) {
	resp, err := re.send(ctx, req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			// Caller walked away; nobody is left to notify.
			return nil, fmt.Errorf("request abandoned: %w", ctx.Err())
		}
		nerr := classifyTransportError(err)
		re.fail(req, nerr)
		return nil, nerr
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && !req.retried:
		return re.recoverAuthentication(ctx, req)
	case resp.StatusCode >= 400:
		nerr := classifyResponse(resp)
		re.fail(req, nerr)
		return nil, nerr
	}

	if req.retried {
		re.sdk.debugf("%s %s succeeded after token renewal", req.Method, req.Endpoint)
	}
	return resp, nil
}

func (re *RequestExecutor) send(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error) {
	if re.sdk.config.RespectRateLimits && !re.sdk.rateLimiter.canProceed() {
		re.sdk.debugf("backend rate limit exhausted, waiting %v", re.sdk.rateLimiter.delayBeforeNextRequest())
		if err := re.sdk.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = re.sdk.config.Timeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := re.sdk.rateLimiter.Throttle(sendCtx); err != nil {
		return nil, err
	}

	attempt := 1
	if req.retried {
		attempt = 2
	}
	re.sdk.logger.Debug("sending request",
		slog.String("method", req.Method),
		slog.String("endpoint", req.Endpoint),
		slog.Int("attempt", attempt),
		slog.String("request_id", req.RequestID))

	resp, err := re.sdk.adapter.ExecuteRequest(sendCtx, req)
	if err != nil {
		return nil, err
	}
	re.sdk.rateLimiter.Update(ParseRateLimitInfo(resp, time.Now()))
	return resp, nil
}

// recoverAuthentication handles the first 401 of a logical request: either it
// leads a renewal or it waits for the one already in flight.
func (re *RequestExecutor) recoverAuthentication(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error) {
	leader, wait := re.sdk.coordinator.AcquireOrJoin()
	if !leader {
		re.sdk.debugf("renewal in flight, queueing %s %s", req.Method, req.Endpoint)
		select {
		case res := <-wait:
			if res.err != nil {
				// The leader already notified for this renewal.
				return nil, renewalFailedError(res.err)
			}
			return re.replay(ctx, req, res.token)
		case <-ctx.Done():
			return nil, fmt.Errorf("request abandoned while waiting for token renewal: %w", ctx.Err())
		}
	}

	req.retried = true
	token, err := re.renew(ctx)
	if err != nil {
		nerr := sessionExpiredError(err)
		re.fail(req, nerr)
		if re.sdk.onSessionExpired != nil {
			re.sdk.onSessionExpired(err)
		}
		return nil, nerr
	}
	return re.replay(ctx, req, token)
}

// renew performs the single renewal of a cycle and resolves the waiter queue.
// Complete always runs, even if the session provider panics.
func (re *RequestExecutor) renew(ctx context.Context) (string, error) {
	completed := false
	defer func() {
		if !completed {
			re.sdk.coordinator.Complete("", errRenewalAborted)
		}
	}()

	// One caller abandoning its request must not fail the renewal for the
	// whole queue.
	renewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), re.sdk.config.RenewalTimeout)
	defer cancel()

	start := time.Now()
	token, err := re.sdk.session.RenewToken(renewCtx)
	if err == nil && token == "" {
		err = ErrEmptyToken
	}
	if err != nil {
		token = ""
	}
	resolved := re.sdk.coordinator.Complete(token, err)
	completed = true

	if err != nil {
		re.sdk.logger.Warn("token renewal failed",
			slog.Int("waiters", resolved),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		return "", err
	}
	re.sdk.logger.Debug("token renewed",
		slog.Int("waiters", resolved),
		slog.Duration("duration", time.Since(start)))
	return token, nil
}

// replay resends req once with a renewed token. A second 401 is terminal.
func (re *RequestExecutor) replay(ctx context.Context, req *NormalizedRequest, token string) (*NormalizedResponse, error) {
	req.retried = true
	req.setHeader("Authorization", "Bearer "+token)
	return re.sendAndHandle(ctx, req)
}

// fail is the single place a terminal failure reaches the user.
func (re *RequestExecutor) fail(req *NormalizedRequest, nerr *NormalizedError) {
	re.sdk.logger.Error("request failed",
		slog.String("method", req.Method),
		slog.String("endpoint", req.Endpoint),
		slog.Int("status", nerr.StatusCode),
		slog.String("kind", nerr.Kind.String()),
		slog.String("request_id", req.RequestID),
		slog.Any("error", nerr.Cause))
	re.sdk.notifier.Notify(notificationText(nerr))
}
