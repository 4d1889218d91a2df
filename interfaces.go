package authbridge

import "context"

// BackendAdapter performs the actual network exchange with the REST backend.
// The executor owns token attachment and renewal; adapters only move bytes.
type BackendAdapter interface {
	ExecuteRequest(ctx context.Context, req *NormalizedRequest) (*NormalizedResponse, error)
}

// SessionProvider is the hosted identity/session collaborator.
type SessionProvider interface {
	// CurrentToken returns the cached bearer token. An empty string with a nil
	// error means no session token is available.
	CurrentToken(ctx context.Context) (string, error)

	// RenewToken explicitly exchanges the current credential for a new one.
	// It is never a cache read.
	RenewToken(ctx context.Context) (string, error)
}

// Notifier receives human-readable failure messages for the user.
// Calls are fire-and-forget.
type Notifier interface {
	Notify(message string)
}
