package mock

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockSession is a scriptable SessionProvider.
type MockSession struct {
	mu         sync.Mutex
	token      string
	currentErr error
	renewToken string
	renewErr   error
	renewPanic bool

	// Gate, when set, holds every RenewToken call until it is closed.
	Gate chan struct{}

	renewCalls   atomic.Int32
	currentCalls atomic.Int32
}

// NewMockSession returns a session whose current token is token and whose
// renewal yields renewed.
func NewMockSession(token, renewed string) *MockSession {
	return &MockSession{token: token, renewToken: renewed}
}

func (s *MockSession) CurrentToken(ctx context.Context) (string, error) {
	s.currentCalls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.currentErr
}

func (s *MockSession) RenewToken(ctx context.Context) (string, error) {
	s.renewCalls.Add(1)
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renewPanic {
		panic("mock: renewal exploded")
	}
	if s.renewErr != nil {
		return "", s.renewErr
	}
	s.token = s.renewToken
	return s.renewToken, nil
}

// FailRenewal makes subsequent renewals return err.
func (s *MockSession) FailRenewal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewErr = err
}

// PanicOnRenewal makes subsequent renewals panic.
func (s *MockSession) PanicOnRenewal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewPanic = true
}

// FailLookup makes CurrentToken return err.
func (s *MockSession) FailLookup(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentErr = err
}

// SetRenewedToken changes what the next renewal returns.
func (s *MockSession) SetRenewedToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewToken = token
}

func (s *MockSession) RenewCalls() int {
	return int(s.renewCalls.Load())
}

func (s *MockSession) CurrentCalls() int {
	return int(s.currentCalls.Load())
}

// MockNotifier records notifications.
type MockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *MockNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *MockNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	copy(out, n.messages)
	return out
}
