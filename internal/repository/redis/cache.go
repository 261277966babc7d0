package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache holds JSON read models: court availability views, keyed by a
// per-court generation, and the pending-orders gate.
type Cache struct {
	rdb   *redis.Client
	loads singleflight.Group
}

func New(client *redis.Client) *Cache {
	return &Cache{rdb: client}
}

// lookup decodes the value at key into dst. A missing key is not an error.
func (c *Cache) lookup(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, err
	}

	if err := json.Unmarshal(b, dst); err != nil {
		// A value we cannot decode is treated as a miss and overwritten.
		return false, nil
	}

	return true, nil
}

func (c *Cache) store(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, ttl).Err()
}

// GetOrSetJSON returns the cached value for key or loads, caches and
// returns it. Concurrent misses for one key share a single load. Cache
// failures fall through to the loader; loader errors are never cached.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	var cached T
	if ok, err := c.lookup(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	v, err, _ := c.loads.Do(key, func() (any, error) {
		var again T
		if ok, err := c.lookup(ctx, key, &again); err == nil && ok {
			return again, nil
		}

		fresh, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		_ = c.store(ctx, key, fresh, ttl)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache %s: unexpected %T", key, v)
	}

	return out, nil
}

// CourtGeneration returns the current cache generation of a court.
func (c *Cache) CourtGeneration(ctx context.Context, courtID int64) (int64, error) {
	n, err := c.rdb.Get(ctx, KeyCourtGeneration(courtID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// InvalidateCourt drops every cached availability view of a court.
func (c *Cache) InvalidateCourt(ctx context.Context, courtID int64) error {
	return c.rdb.Incr(ctx, KeyCourtGeneration(courtID)).Err()
}

// AnyPending reports whether any order is pending. The answer is
// recomputed with count when the cached gate is missing or expired.
func (c *Cache) AnyPending(
	ctx context.Context,
	ttl time.Duration,
	count func(ctx context.Context) (int64, error),
) (bool, error) {
	return GetOrSetJSON(ctx, c, KeyPendingGate(), ttl, func(ctx context.Context) (bool, error) {
		n, err := count(ctx)
		return n > 0, err
	})
}

func (c *Cache) InvalidatePendingGate(ctx context.Context) error {
	return c.rdb.Del(ctx, KeyPendingGate()).Err()
}
