package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

type availability struct {
	CourtID int64    `json:"court_id"`
	Busy    []string `json:"busy"`
}

func TestGetOrSetJSON(t *testing.T) {
	mr, rdb := newTestClient(t)
	cache := New(rdb)
	ctx := context.Background()

	var loads atomic.Int32
	loader := func(ctx context.Context) (availability, error) {
		loads.Add(1)
		return availability{CourtID: 1, Busy: []string{"08-10"}}, nil
	}

	v, err := GetOrSetJSON(ctx, cache, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.CourtID)

	v, err = GetOrSetJSON(ctx, cache, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, []string{"08-10"}, v.Busy)
	assert.Equal(t, int32(1), loads.Load())

	mr.FastForward(2 * time.Minute)
	_, err = GetOrSetJSON(ctx, cache, "k", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestGetOrSetJSON_LoaderError(t *testing.T) {
	mr, rdb := newTestClient(t)
	cache := New(rdb)
	errLoad := errors.New("db down")

	_, err := GetOrSetJSON(context.Background(), cache, "k", time.Minute, func(ctx context.Context) (bool, error) {
		return false, errLoad
	})
	assert.ErrorIs(t, err, errLoad)

	assert.False(t, mr.Exists("k"), "loader errors are not cached")
}

func TestCache_InvalidateCourt(t *testing.T) {
	_, rdb := newTestClient(t)
	cache := New(rdb)
	ctx := context.Background()

	gen, err := cache.CourtGeneration(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, gen)

	require.NoError(t, cache.InvalidateCourt(ctx, 3))
	gen, err = cache.CourtGeneration(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	assert.NotEqual(t, KeyCourtAvailability(3, 0, "2024-05-01"), KeyCourtAvailability(3, gen, "2024-05-01"))
}

func TestCache_AnyPending(t *testing.T) {
	mr, rdb := newTestClient(t)
	cache := New(rdb)
	ctx := context.Background()

	pending := int64(0)
	var calls atomic.Int32
	count := func(ctx context.Context) (int64, error) {
		calls.Add(1)
		return pending, nil
	}

	busy, err := cache.AnyPending(ctx, 10*time.Second, count)
	require.NoError(t, err)
	assert.False(t, busy)

	pending = 2
	busy, err = cache.AnyPending(ctx, 10*time.Second, count)
	require.NoError(t, err)
	assert.False(t, busy, "cached until expiry or invalidation")

	require.NoError(t, cache.InvalidatePendingGate(ctx))
	busy, err = cache.AnyPending(ctx, 10*time.Second, count)
	require.NoError(t, err)
	assert.True(t, busy)

	pending = 0
	mr.FastForward(11 * time.Second)
	busy, err = cache.AnyPending(ctx, 10*time.Second, count)
	require.NoError(t, err)
	assert.False(t, busy)
	assert.Equal(t, int32(3), calls.Load())
}

func TestIdempotencyStore(t *testing.T) {
	_, rdb := newTestClient(t)
	store := NewIdempotencyStore(rdb, time.Hour)
	ctx := context.Background()
	key := KeyIdemReserve(1, "u-1", "abc")

	status, _, err := store.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemNew, status)

	status, _, err = store.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemInProgress, status)

	require.NoError(t, store.Complete(ctx, key, `{"order_id":"x"}`))
	status, payload, err := store.Begin(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemDone, status)
	assert.Equal(t, `{"order_id":"x"}`, payload)

	other := KeyIdemReserve(1, "u-1", "def")
	_, _, err = store.Begin(ctx, other, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Abort(ctx, other))
	status, _, err = store.Begin(ctx, other, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, IdemNew, status)
}

func TestIdempotencyStore_LockIsOwned(t *testing.T) {
	_, rdb := newTestClient(t)
	store := NewIdempotencyStore(rdb, time.Hour)
	ctx := context.Background()
	key := KeyOrderLock(uuid.New())

	ok, err := store.Lock(ctx, key, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Lock(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Unlock(ctx, key, "b"))
	ok, err = store.Lock(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "foreign unlock must not release the lock")

	require.NoError(t, store.Unlock(ctx, key, "a"))
	ok, err = store.Lock(ctx, key, "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSlidingWindowLimiter(t *testing.T) {
	_, rdb := newTestClient(t)
	limiter := NewSlidingWindowLimiter(rdb, "reserve", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "u-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := limiter.Allow(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	d, err = limiter.Allow(ctx, "u-2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCourtsPubSub(t *testing.T) {
	_, rdb := newTestClient(t)
	ps := NewCourtsPubSub(rdb)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan int64, 1)
	done := make(chan error, 1)
	go func() {
		done <- ps.Subscribe(ctx, func(ctx context.Context, courtID int64) {
			got <- courtID
			cancel()
		})
	}()

	require.Eventually(t, func() bool {
		n, err := rdb.PubSubNumSub(ctx, ChannelCourtsChanged()).Result()
		return err == nil && n[ChannelCourtsChanged()] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ps.PublishCourtChanged(context.Background(), 42))
	assert.Equal(t, int64(42), <-got)
	assert.ErrorIs(t, <-done, context.Canceled)
}
