package authbridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NormalizedRequest is one logical call to the backend. The executor may send
// it twice: once with the attach-time token and once more after a renewal.
type NormalizedRequest struct {
	Method    string
	Endpoint  string
	Headers   map[string]string
	Body      []byte
	Form      *FormData     // multipart payload; mutually exclusive with Body
	Timeout   time.Duration // zero means Config.Timeout
	RequestID string

	retried bool
}

// Retried reports whether the request has already been replayed after a
// token renewal.
func (r *NormalizedRequest) Retried() bool {
	return r.retried
}

// header looks up a header case-insensitively.
func (r *NormalizedRequest) header(name string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func (r *NormalizedRequest) setHeader(name, value string) {
	r.deleteHeader(name)
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[name] = value
}

func (r *NormalizedRequest) deleteHeader(name string) {
	for k := range r.Headers {
		if strings.EqualFold(k, name) {
			delete(r.Headers, k)
		}
	}
}

// FormData is a multipart/form-data payload. The adapter encodes it on every
// send so a replayed request carries a fresh body and boundary.
type FormData struct {
	Fields map[string]string
	Files  []FormFile
}

// FormFile is a single file part of a FormData payload.
type FormFile struct {
	Field    string
	FileName string
	Data     []byte
}

type NormalizedResponse struct {
	StatusCode int
	Headers    map[string]string // keys lower-cased
	Data       []byte
}

// Envelope is the application-level wrapper every backend JSON body carries.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Envelope decodes the success flag and message from the response body.
func (r *NormalizedResponse) Envelope() (Envelope, error) {
	var env Envelope
	if len(r.Data) == 0 {
		return env, fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Data, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// DecodeJSON unmarshals the response body into dest.
func (r *NormalizedResponse) DecodeJSON(dest any) error {
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(r.Data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type NormalizedRateLimitInfo struct {
	MaxRequests       *int
	RemainingRequests *int
	ResetRequestsAt   *int64 // unix ms
}
