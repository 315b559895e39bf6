package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheReusesClients(t *testing.T) {
	constructed := 0
	cache := NewCache(time.Minute, func(ctx context.Context, creds Credentials) (string, error) {
		constructed++
		return "client:" + creds.Username, nil
	})

	ctx := context.Background()
	alice := Credentials{Username: "alice", Password: "hunter2"}
	bob := Credentials{Username: "bob", Password: "swordfish"}

	first, err := cache.Get(ctx, alice)
	require.NoError(t, err)
	second, err := cache.Get(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, constructed)

	_, err = cache.Get(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, 2, constructed)
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	fail := errors.New("bad credentials")
	attempts := 0
	cache := NewCache(time.Minute, func(ctx context.Context, creds Credentials) (string, error) {
		attempts++
		if attempts == 1 {
			return "", fail
		}
		return "client", nil
	})

	ctx := context.Background()
	creds := Credentials{Username: "alice"}

	_, err := cache.Get(ctx, creds)
	require.ErrorIs(t, err, fail)

	// the failed construction is not cached
	client, err := cache.Get(ctx, creds)
	require.NoError(t, err)
	require.Equal(t, "client", client)
	require.Equal(t, 2, attempts)
}
