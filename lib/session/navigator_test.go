package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNavigatorSkipsRedundantSelection(t *testing.T) {
	selections := 0
	nav := NewNavigator(func(ctx context.Context, scope string) error {
		selections++
		return nil
	})

	ctx := context.Background()

	require.NoError(t, nav.Ensure(ctx, "201410"))
	require.Equal(t, 1, selections)
	require.Equal(t, "201410", nav.Current())

	// same scope again, no request
	require.NoError(t, nav.Ensure(ctx, "201410"))
	require.Equal(t, 1, selections)

	// switching scopes selects again
	require.NoError(t, nav.Ensure(ctx, "201403"))
	require.Equal(t, 2, selections)
	require.Equal(t, "201403", nav.Current())

	// and switching back does too, the remote only keeps one
	require.NoError(t, nav.Ensure(ctx, "201410"))
	require.Equal(t, 3, selections)
}

func TestNavigatorKeepsScopeOnFailure(t *testing.T) {
	fail := errors.New("the portal is down")
	shouldFail := true
	nav := NewNavigator(func(ctx context.Context, scope string) error {
		if shouldFail {
			return fail
		}
		return nil
	})

	ctx := context.Background()

	require.ErrorIs(t, nav.Ensure(ctx, "201410"), fail)
	// a failed selection must not be remembered as current
	require.Equal(t, "", nav.Current())

	shouldFail = false
	require.NoError(t, nav.Ensure(ctx, "201410"))
	require.Equal(t, "201410", nav.Current())
}
