package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache keeps constructed, authenticated portal clients around so repeated
// operations for the same user don't pay the login round-trips every time.
// Entries expire so a long-idle session re-authenticates from scratch
// instead of limping along on stale cookies.
type Cache[C any] struct {
	cache     *expirable.LRU[string, C]
	construct func(ctx context.Context, creds Credentials) (C, error)
}

func NewCache[C any](ttl time.Duration, construct func(ctx context.Context, creds Credentials) (C, error)) Cache[C] {
	return Cache[C]{
		cache:     expirable.NewLRU[string, C](2048, nil, ttl),
		construct: construct,
	}
}

func (s Cache[C]) Get(ctx context.Context, creds Credentials) (C, error) {
	cached, hit := s.cache.Get(creds.Username)
	if hit {
		return cached, nil
	}

	client, err := s.construct(ctx, creds)
	if err != nil {
		var zero C
		return zero, err
	}

	s.cache.Add(creds.Username, client)
	return client, nil
}
