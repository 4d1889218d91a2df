package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authbridge "github.com/opengovern/authbridge"
	"github.com/opengovern/authbridge/session"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func staticBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer cli-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"Unauthorized"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/user/data":
			_, _ = w.Write([]byte(`{"success":true,"user":{"_id":"u1","username":"ada"}}`))
		case "/api/user/follow":
			_, _ = w.Write([]byte(`{"success":true,"message":"You are now following this user"}`))
		default:
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	t.Cleanup(srv.Close)
	t.Setenv("AUTHBRIDGE_BASE_URL", srv.URL)
	t.Setenv("AUTHBRIDGE_SESSION_ACCESS_TOKEN", "cli-token")
	t.Setenv("AUTHBRIDGE_SESSION_CLIENT_ID", "")
	return srv
}

func TestCLI_Request(t *testing.T) {
	staticBackend(t)

	out, err := runCLI(t, "request", "get", "/api/user/data", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, `"username":"ada"`)
}

func TestCLI_RequestRejectsBadHeader(t *testing.T) {
	staticBackend(t)

	_, err := runCLI(t, "request", "GET", "/", "-H", "no-colon")
	assert.Error(t, err)
}

func TestCLI_Whoami(t *testing.T) {
	staticBackend(t)

	out, err := runCLI(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, `"username": "ada"`)
}

func TestCLI_Follow(t *testing.T) {
	staticBackend(t)

	out, err := runCLI(t, "follow", "u2")
	require.NoError(t, err)
	assert.Equal(t, "You are now following this user\n", out)
}

func TestCLI_Burst(t *testing.T) {
	staticBackend(t)

	out, err := runCLI(t, "burst", "/api/post/feed", "-n", "5", "--parallel", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "requests=5 ok=5 failed=0 renewals=0")
}

func TestBuildSession(t *testing.T) {
	ctx := context.Background()

	s, err := buildSession(ctx, authbridge.SessionConfig{AccessToken: "tok"})
	require.NoError(t, err)
	tok, err := s.CurrentToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	s, err = buildSession(ctx, authbridge.SessionConfig{})
	require.NoError(t, err)
	_, err = s.RenewToken(ctx)
	assert.ErrorIs(t, err, session.ErrRenewalUnsupported)

	s, err = buildSession(ctx, authbridge.SessionConfig{ClientID: "c", TokenURL: "https://idp.example.com/token", RefreshToken: "r"})
	require.NoError(t, err)
	assert.IsType(t, &session.OAuthSession{}, s)
}
