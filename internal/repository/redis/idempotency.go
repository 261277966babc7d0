package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLock   = "LOCK"
	idemResult = "RES:"
)

type IdemStatus int

const (
	// IdemNew means the caller owns the key and must Complete or Abort it.
	IdemNew IdemStatus = iota
	// IdemInProgress means another request holds the key.
	IdemInProgress
	// IdemDone means a stored response is available for replay.
	IdemDone
)

// KEYS[1] = lock key, ARGV[1] = owner token
const luaUnlock = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

type IdempotencyStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	unlock *redis.Script
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl, unlock: redis.NewScript(luaUnlock)}
}

// Begin claims key for a new request or reports a finished or running one.
func (s *IdempotencyStore) Begin(ctx context.Context, key string, lockTTL time.Duration) (IdemStatus, string, error) {
	if payload, ok, err := s.result(ctx, key); err != nil || ok {
		return IdemDone, payload, err
	}

	locked, err := s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
	if err != nil {
		return IdemInProgress, "", err
	}
	if locked {
		return IdemNew, "", nil
	}

	if payload, ok, err := s.result(ctx, key); err != nil || ok {
		return IdemDone, payload, err
	}

	return IdemInProgress, "", nil
}

// Complete stores the response replayed for later requests with key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, payload string) error {
	return s.rdb.Set(ctx, key, idemResult+payload, s.ttl).Err()
}

// Abort frees key so the request can be retried.
func (s *IdempotencyStore) Abort(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *IdempotencyStore) result(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if strings.HasPrefix(v, idemResult) {
		return strings.TrimPrefix(v, idemResult), true, nil
	}

	return "", false, nil
}

// Lock takes a short exclusive lock on key owned by token.
func (s *IdempotencyStore) Lock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, token, ttl).Result()
}

// Unlock releases key if token still owns it.
func (s *IdempotencyStore) Unlock(ctx context.Context, key, token string) error {
	return s.unlock.Run(ctx, s.rdb, []string{key}, token).Err()
}
