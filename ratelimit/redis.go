package ratelimit

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"
)

const redisKeyPrefix = "beacon:ratelimit:"

// allowScript checks the counter before incrementing so rejected calls do
// not consume capacity. The key expires at window rollover.
//
// KEYS[1] window key, ARGV[1] limit, ARGV[2] window in milliseconds.
var allowScript = goredis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n >= tonumber(ARGV[1]) then
	return 0
end
n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// refundScript decrements a live window counter. An expired key is not
// recreated.
var refundScript = goredis.NewScript(`
local n = tonumber(redis.call("GET", KEYS[1]) or "0")
if n > 0 then
	redis.call("DECR", KEYS[1])
end
return 1
`)

// Redis is a Limiter whose windows live in Redis, shared by every engine
// instance pointed at the same server.
type Redis struct {
	rdb goredis.UniversalClient
}

// NewRedis creates a Redis-backed limiter.
func NewRedis(rdb goredis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

// NewRedisFromKV creates a Redis-backed limiter from a Grove KV store using
// the Redis driver.
func NewRedisFromKV(store *kv.Store) *Redis {
	return NewRedis(redisdriver.UnwrapClient(store))
}

// Allow implements Limiter.
func (l *Redis) Allow(ctx context.Context, targetID string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	n, err := allowScript.Run(ctx, l.rdb, []string{redisKeyPrefix + targetID}, limit, Window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("beacon/ratelimit: redis allow: %w", err)
	}
	return n == 1, nil
}

// Reset drops the window for a target.
func (l *Redis) Reset(ctx context.Context, targetID string) error {
	return l.rdb.Del(ctx, redisKeyPrefix+targetID).Err()
}

// Refund implements Refunder.
func (l *Redis) Refund(ctx context.Context, targetID string) error {
	if err := refundScript.Run(ctx, l.rdb, []string{redisKeyPrefix + targetID}).Err(); err != nil {
		return fmt.Errorf("beacon/ratelimit: redis refund: %w", err)
	}
	return nil
}
