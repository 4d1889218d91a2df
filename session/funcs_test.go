package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s := Static("tok")
	current, err := s.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", current)

	_, err = s.RenewToken(context.Background())
	assert.ErrorIs(t, err, ErrRenewalUnsupported)
}

func TestFuncs_ZeroValue(t *testing.T) {
	var f Funcs
	current, err := f.CurrentToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestFuncs_Renew(t *testing.T) {
	calls := 0
	f := Funcs{Renew: func(context.Context) (string, error) {
		calls++
		return "renewed", nil
	}}
	tok, err := f.RenewToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed", tok)
	assert.Equal(t, 1, calls)
}
