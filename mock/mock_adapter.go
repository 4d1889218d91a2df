package mock

import (
	"context"
	"strings"
	"sync"

	authbridge "github.com/opengovern/authbridge"
)

// MockAdapter answers requests from a handler and records what it was sent.
// With no handler it accepts any request whose bearer token is in ValidTokens
// and answers 401 otherwise.
type MockAdapter struct {
	Handler     func(ctx context.Context, req *authbridge.NormalizedRequest) (*authbridge.NormalizedResponse, error)
	ValidTokens map[string]bool

	mu    sync.Mutex
	calls []Call
}

// Call is one recorded send.
type Call struct {
	Method    string
	Endpoint  string
	Token     string
	RequestID string
	Headers   map[string]string
	Form      bool
	Retried   bool
}

func (m *MockAdapter) ExecuteRequest(ctx context.Context, req *authbridge.NormalizedRequest) (*authbridge.NormalizedResponse, error) {
	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[k] = v
	}
	token := BearerToken(req)

	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Method:    req.Method,
		Endpoint:  req.Endpoint,
		Token:     token,
		RequestID: req.RequestID,
		Headers:   headers,
		Form:      req.Form != nil,
		Retried:   req.Retried(),
	})
	handler := m.Handler
	valid := m.ValidTokens[token]
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	if !valid {
		return JSON(401, `{"success":false,"message":"Unauthorized"}`), nil
	}
	return JSON(200, `{"success":true}`), nil
}

// SetValidTokens replaces the accepted token set.
func (m *MockAdapter) SetValidTokens(tokens ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValidTokens = make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m.ValidTokens[t] = true
	}
}

func (m *MockAdapter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns the recorded sends to endpoint.
func (m *MockAdapter) CallsTo(endpoint string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Endpoint == endpoint {
			out = append(out, c)
		}
	}
	return out
}

// BearerToken returns the token of the Authorization header, or "".
func BearerToken(req *authbridge.NormalizedRequest) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Authorization") {
			return strings.TrimPrefix(v, "Bearer ")
		}
	}
	return ""
}

// JSON builds a response with a JSON body.
func JSON(status int, body string) *authbridge.NormalizedResponse {
	return &authbridge.NormalizedResponse{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Data:       []byte(body),
	}
}
