// sdk.go
// ------
// The sdk.go file contains the AuthBridge client, the single entry point the
// rest of the application uses to reach the backend.
//
// Key functionalities include:
// - Building a client with NewAuthBridge() from a Config, an injected
//   SessionProvider and a BackendAdapter
// - Making requests via Request() and the Get/Post/Put/Delete helpers
// - Decoding the backend's {success, message} envelope via DoJSON()
// - Exposing renewal and rate-limit state for diagnostics
//
// The AuthBridge relies on a RequestExecutor for the request pipeline and on a
// RefreshCoordinator so that at most one token renewal runs at a time.
package authbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type AuthBridge struct {
	config           Config
	session          SessionProvider
	adapter          BackendAdapter
	notifier         Notifier
	onSessionExpired func(error)
	logger           *slog.Logger

	coordinator *RefreshCoordinator
	rateLimiter *RateLimiter
	executor    *RequestExecutor
}

// Option customizes an AuthBridge at construction.
type Option func(*AuthBridge)

// WithNotifier sets the sink for user-facing failure messages.
func WithNotifier(n Notifier) Option {
	return func(b *AuthBridge) {
		if n != nil {
			b.notifier = n
		}
	}
}

// WithSessionExpiredHandler registers fn to run once per failed renewal
// cycle. Applications typically sign the user out there.
func WithSessionExpiredHandler(fn func(error)) Option {
	return func(b *AuthBridge) {
		b.onSessionExpired = fn
	}
}

// WithLogger overrides Config.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *AuthBridge) {
		if l != nil {
			b.logger = l
		}
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(string) {}

func NewAuthBridge(cfg Config, session SessionProvider, adapter BackendAdapter, opts ...Option) (*AuthBridge, error) {
	if session == nil {
		return nil, errors.New("session provider is required")
	}
	if adapter == nil {
		return nil, errors.New("backend adapter is required")
	}
	cfg.setDefaults()

	limiter := NewRateLimiter()
	limiter.SetClientLimit(cfg.RequestsPerSecond, cfg.Burst)

	sdk := &AuthBridge{
		config:      cfg,
		session:     session,
		adapter:     adapter,
		notifier:    discardNotifier{},
		logger:      cfg.Logger,
		coordinator: NewRefreshCoordinator(),
		rateLimiter: limiter,
	}
	for _, opt := range opts {
		opt(sdk)
	}
	sdk.executor = NewRequestExecutor(sdk)
	return sdk, nil
}

// RequestOptions parameterizes a single call.
type RequestOptions struct {
	// Body is sent as-is when it is a []byte and JSON-encoded otherwise.
	Body any
	// Form sends a multipart/form-data body instead of Body.
	Form *FormData
	// Headers override the defaults for this call only.
	Headers map[string]string
	// Timeout overrides Config.Timeout for this call only.
	Timeout time.Duration
}

// Request sends one logical request to the backend. Authentication failures
// are recovered transparently with at most one renewal and one replay; every
// other failure is returned as a *NormalizedError.
func (sdk *AuthBridge) Request(ctx context.Context, method, path string, opts *RequestOptions) (*NormalizedResponse, error) {
	req, err := sdk.newRequest(method, path, opts)
	if err != nil {
		return nil, err
	}
	sdk.debugf("Requesting %s %s (request_id=%s)", req.Method, req.Endpoint, req.RequestID)
	return sdk.executor.Execute(ctx, req)
}

func (sdk *AuthBridge) Get(ctx context.Context, path string) (*NormalizedResponse, error) {
	return sdk.Request(ctx, http.MethodGet, path, nil)
}

func (sdk *AuthBridge) Post(ctx context.Context, path string, body any) (*NormalizedResponse, error) {
	return sdk.Request(ctx, http.MethodPost, path, &RequestOptions{Body: body})
}

func (sdk *AuthBridge) Put(ctx context.Context, path string, body any) (*NormalizedResponse, error) {
	return sdk.Request(ctx, http.MethodPut, path, &RequestOptions{Body: body})
}

func (sdk *AuthBridge) Delete(ctx context.Context, path string) (*NormalizedResponse, error) {
	return sdk.Request(ctx, http.MethodDelete, path, nil)
}

// DoJSON sends a request, requires the envelope's success flag and decodes the
// body into dest. A success=false envelope yields an error wrapping
// ErrRequestRejected with the backend's message.
func (sdk *AuthBridge) DoJSON(ctx context.Context, method, path string, opts *RequestOptions, dest any) error {
	resp, err := sdk.Request(ctx, method, path, opts)
	if err != nil {
		return err
	}
	env, err := resp.Envelope()
	if err != nil {
		return err
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("%s %s", method, path)
		}
		return fmt.Errorf("%s: %w", msg, ErrRequestRejected)
	}
	return resp.DecodeJSON(dest)
}

func (sdk *AuthBridge) newRequest(method, path string, opts *RequestOptions) (*NormalizedRequest, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	req := &NormalizedRequest{
		Method:    method,
		Endpoint:  path,
		Headers:   make(map[string]string, len(sdk.config.DefaultHeaders)+3),
		Form:      opts.Form,
		Timeout:   opts.Timeout,
		RequestID: uuid.NewString(),
	}

	req.setHeader("Content-Type", "application/json")
	req.setHeader("Accept", "application/json")
	for k, v := range sdk.config.DefaultHeaders {
		req.setHeader(k, v)
	}
	for k, v := range opts.Headers {
		req.setHeader(k, v)
	}
	req.setHeader("X-Request-ID", req.RequestID)

	if opts.Body != nil && opts.Form == nil {
		switch body := opts.Body.(type) {
		case []byte:
			req.Body = body
		case json.RawMessage:
			req.Body = body
		default:
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
			req.Body = data
		}
	}
	return req, nil
}

// Stats returns the renewal counters.
func (sdk *AuthBridge) Stats() RefreshStats {
	return sdk.coordinator.Stats()
}

// GetRateLimitInfo returns the last rate-limit window the backend reported.
func (sdk *AuthBridge) GetRateLimitInfo() *NormalizedRateLimitInfo {
	return sdk.rateLimiter.GetRateLimitInfo()
}

// Config returns a copy of the effective configuration.
func (sdk *AuthBridge) Config() Config {
	return sdk.config
}

// debugf logs debug messages if Debug mode is enabled.
func (sdk *AuthBridge) debugf(format string, args ...any) {
	if sdk.config.Debug {
		sdk.logger.Debug(fmt.Sprintf(format, args...))
	}
}
