package session

import (
	"context"
	"errors"
)

// ErrRenewalUnsupported is returned by Funcs without a Renew function.
var ErrRenewalUnsupported = errors.New("session renewal not supported")

// Funcs adapts a pair of functions to the SessionProvider contract, for
// identity SDKs that expose token access as callbacks.
type Funcs struct {
	Current func(ctx context.Context) (string, error)
	Renew   func(ctx context.Context) (string, error)
}

func (f Funcs) CurrentToken(ctx context.Context) (string, error) {
	if f.Current == nil {
		return "", nil
	}
	return f.Current(ctx)
}

func (f Funcs) RenewToken(ctx context.Context) (string, error) {
	if f.Renew == nil {
		return "", ErrRenewalUnsupported
	}
	return f.Renew(ctx)
}

// Static serves a fixed token and cannot renew it.
func Static(token string) Funcs {
	return Funcs{
		Current: func(context.Context) (string, error) { return token, nil },
	}
}
