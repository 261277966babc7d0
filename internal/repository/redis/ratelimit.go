package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// luaReserveWindow admits a hit when fewer than limit hits are recorded in
// the trailing window. Rejected hits are not recorded, so a client retrying
// while limited does not push its own window forward.
//
// KEYS[1] hit set; ARGV: now_ms, window_ms, limit, member.
// Returns {allowed, remaining, retry_ms}.
const luaReserveWindow = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local used = redis.call('ZCARD', KEYS[1])

if used >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local retry = window
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, 0, math.max(retry, 0)}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, limit - used - 1, 0}
`

var reserveWindowScript = redis.NewScript(luaReserveWindow)

// SlidingWindowLimiter bounds attempts per subject within a trailing window.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

type RateDecision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

func NewSlidingWindowLimiter(rdb *redis.Client, scope string, limit int, window time.Duration) *SlidingWindowLimiter {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}

	return &SlidingWindowLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records one attempt for subject if it fits the window.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, subject string) (RateDecision, error) {
	const op = "redis.SlidingWindowLimiter.Allow"

	res, err := reserveWindowScript.Run(ctx, l.rdb,
		[]string{KeyRateLimit(l.scope, subject)},
		l.now().UnixMilli(), l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return RateDecision{}, fmt.Errorf("%s:%w", op, err)
	}
	if len(res) != 3 {
		return RateDecision{}, fmt.Errorf("%s: unexpected script reply %v", op, res)
	}

	return RateDecision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
