package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// Remember reads key into dst, calling fill on a miss and caching what it
	// returns. Cache write failures are not surfaced; fill errors are.
	Remember(ctx context.Context, key string, ttl time.Duration, dst any, fill func() (any, error)) error
}
