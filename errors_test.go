package authbridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("do: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"refused", errors.New("dial tcp: connection refused"), KindNetworkUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nerr := classifyTransportError(tt.err)
			assert.Equal(t, tt.want, nerr.Kind)
			assert.Zero(t, nerr.StatusCode)
			assert.ErrorIs(t, nerr, tt.err)
		})
	}
}

func TestClassifyResponse(t *testing.T) {
	nerr := classifyResponse(&NormalizedResponse{StatusCode: 503, Data: []byte(`{"success":false,"message":"database asleep"}`)})
	assert.Equal(t, KindServerError, nerr.Kind)
	assert.Equal(t, "database asleep", nerr.Message)
	assert.ErrorIs(t, nerr, ErrServerError)

	nerr = classifyResponse(&NormalizedResponse{StatusCode: 404, Data: []byte(`<html>nope</html>`)})
	assert.Equal(t, KindClientError, nerr.Kind)
	assert.Equal(t, "request failed with status 404", nerr.Message)
	assert.ErrorIs(t, nerr, ErrClientError)

	nerr = classifyResponse(&NormalizedResponse{StatusCode: 401})
	assert.Equal(t, KindAuthenticationExpired, nerr.Kind)
}

func TestNormalizedError_IsMatchesOnlyItsKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", renewalFailedError(errors.New("idp down")))

	assert.ErrorIs(t, err, ErrRenewalFailed)
	assert.NotErrorIs(t, err, ErrAuthenticationExpired)
	assert.Equal(t, KindRenewalFailed, KindOf(err))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "renewal_failed", KindRenewalFailed.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}
