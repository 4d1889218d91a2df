// http_adapter.go
// ---------------
// HTTPAdapter is the net/http transport behind an AuthBridge. It resolves the
// request endpoint against the configured base URL, encodes multipart forms,
// and returns the fully read response so the executor can inspect it after the
// per-request context has been cancelled.
//
// Key Points:
// - No retries or token logic live here; the executor owns both.
// - Form bodies are encoded on every call, so a replay after token renewal
//   gets a fresh multipart boundary.
// - Response header keys are lower-cased.

package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	authbridge "github.com/opengovern/authbridge"
)

const (
	// Upper bound for a response body read into memory.
	MaxResponseBytes = 10 << 20

	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
)

// ErrResponseTooLarge is returned instead of a truncated body.
var ErrResponseTooLarge = errors.New("response too large")

type HTTPAdapter struct {
	baseURL   *url.URL
	client    *http.Client
	userAgent string
}

// NewHTTPAdapter builds an adapter for baseURL. A nil client gets a pooled
// transport; request deadlines always come from the executor's context.
func NewHTTPAdapter(baseURL string, client *http.Client) (*HTTPAdapter, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		}
	}
	return &HTTPAdapter{
		baseURL:   base,
		client:    client,
		userAgent: authbridge.DefaultUserAgent,
	}, nil
}

// NewHTTPAdapterFromConfig builds an adapter from a client Config.
func NewHTTPAdapterFromConfig(cfg *authbridge.Config) (*HTTPAdapter, error) {
	a, err := NewHTTPAdapter(cfg.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	if cfg.UserAgent != "" {
		a.userAgent = cfg.UserAgent
	}
	return a, nil
}

func (h *HTTPAdapter) ExecuteRequest(ctx context.Context, req *authbridge.NormalizedRequest) (*authbridge.NormalizedResponse, error) {
	fullURL, err := h.resolve(req.Endpoint)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Form != nil:
		data, ct, err := encodeMultipart(req.Form)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
		contentType = ct
	case len(req.Body) > 0:
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > MaxResponseBytes {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrResponseTooLarge, MaxResponseBytes)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, vals := range resp.Header {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}

	return &authbridge.NormalizedResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Data:       data,
	}, nil
}

func (h *HTTPAdapter) resolve(endpoint string) (string, error) {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if rel.IsAbs() {
		return rel.String(), nil
	}
	// Keep any path prefix on the base URL ("https://host/backend" + "/api/x").
	joined := *h.baseURL
	joined.Path = strings.TrimRight(h.baseURL.Path, "/") + "/" + strings.TrimLeft(rel.Path, "/")
	joined.RawQuery = rel.RawQuery
	return joined.String(), nil
}

func encodeMultipart(form *authbridge.FormData) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range form.Fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("encode form field %s: %w", k, err)
		}
	}
	for _, f := range form.Files {
		part, err := w.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return nil, "", fmt.Errorf("encode form file %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("encode form file %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
