// errors.go
// ---------
// Error normalization for the request pipeline. Every failure that reaches a
// caller is a *NormalizedError whose Kind places it in a fixed taxonomy.
// Callers match kinds with errors.Is against the sentinels below.
package authbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies a pipeline failure.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota + 1
	KindNetworkUnreachable
	KindAuthenticationExpired
	KindServerError
	KindClientError
	// KindRenewalFailed is only surfaced to requests that were queued behind
	// a renewal which then failed.
	KindRenewalFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNetworkUnreachable:
		return "network_unreachable"
	case KindAuthenticationExpired:
		return "authentication_expired"
	case KindServerError:
		return "server_error"
	case KindClientError:
		return "client_error"
	case KindRenewalFailed:
		return "renewal_failed"
	default:
		return "unknown"
	}
}

var (
	ErrTimeout               = errors.New("request timed out")
	ErrNetworkUnreachable    = errors.New("network unreachable")
	ErrAuthenticationExpired = errors.New("authentication expired")
	ErrServerError           = errors.New("server error")
	ErrClientError           = errors.New("client error")
	ErrRenewalFailed         = errors.New("token renewal failed")

	// ErrRequestRejected is returned when the backend answers 2xx but its
	// envelope carries success=false.
	ErrRequestRejected = errors.New("request rejected by backend")

	// ErrEmptyToken is the cause recorded when a renewal returns no token.
	ErrEmptyToken = errors.New("session provider returned an empty token")
)

var kindSentinels = map[ErrorKind]error{
	KindTimeout:               ErrTimeout,
	KindNetworkUnreachable:    ErrNetworkUnreachable,
	KindAuthenticationExpired: ErrAuthenticationExpired,
	KindServerError:           ErrServerError,
	KindClientError:           ErrClientError,
	KindRenewalFailed:         ErrRenewalFailed,
}

// User-facing messages.
const (
	msgTimeout        = "Request timed out. Please try again."
	msgNetwork        = "Network error. Please check your connection."
	msgSessionExpired = "Session expired. Please login again."
	msgFallback       = "An error occurred"
)

// NormalizedError is the single error type the pipeline surfaces.
type NormalizedError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int // zero when no response was received
	Cause      error
}

func (e *NormalizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *NormalizedError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind.
func (e *NormalizedError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the kind of a normalized error anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var ne *NormalizedError
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return 0
}

// classifyTransportError maps a failure with no HTTP response.
func classifyTransportError(err error) *NormalizedError {
	if isTimeout(err) {
		return &NormalizedError{Kind: KindTimeout, Message: msgTimeout, Cause: err}
	}
	return &NormalizedError{Kind: KindNetworkUnreachable, Message: msgNetwork, Cause: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyResponse maps an HTTP error response. A 401 only reaches this point
// once the request has already been replayed.
func classifyResponse(resp *NormalizedResponse) *NormalizedError {
	cause := fmt.Errorf("request failed with status %d", resp.StatusCode)
	msg := responseMessage(resp.Data)
	if msg == "" {
		msg = cause.Error()
	}

	kind := KindClientError
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		kind = KindAuthenticationExpired
	case resp.StatusCode >= 500:
		kind = KindServerError
	}
	return &NormalizedError{Kind: kind, Message: msg, StatusCode: resp.StatusCode, Cause: cause}
}

// responseMessage extracts the backend's "message" field, if any.
func responseMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Message)
}

// sessionExpiredError is surfaced to the request that led a failed renewal.
func sessionExpiredError(cause error) *NormalizedError {
	return &NormalizedError{Kind: KindAuthenticationExpired, Message: msgSessionExpired, StatusCode: http.StatusUnauthorized, Cause: cause}
}

// renewalFailedError is surfaced to requests queued behind a failed renewal.
func renewalFailedError(cause error) *NormalizedError {
	return &NormalizedError{Kind: KindRenewalFailed, Message: msgSessionExpired, StatusCode: http.StatusUnauthorized, Cause: cause}
}

// notificationText picks what the user sees for a terminal failure.
func notificationText(err *NormalizedError) string {
	if err.Message != "" {
		return err.Message
	}
	return msgFallback
}
