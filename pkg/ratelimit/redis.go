package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "flowdocs:ratelimit:"

// allowScript performs the prune-check-append sequence server-side so that
// concurrent calls for the same key cannot interleave.
//
// KEYS[1] window sorted set
// ARGV[1] window start (unix micros), ARGV[2] limit,
// ARGV[3] now (unix micros), ARGV[4] member suffix, ARGV[5] ttl millis
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[2]) then
  redis.call('ZADD', KEYS[1], ARGV[3], ARGV[3] .. '-' .. ARGV[4])
  redis.call('PEXPIRE', KEYS[1], ARGV[5])
  return 1
end
return 0
`)

// Redis is the shared limiter backend for multi-process deployments. Each
// key's window lives in a sorted set scored by request time; expiry keeps the
// key space bounded without an explicit sweep.
type Redis struct {
	client *redis.Client
	config Config
	now    func() time.Time
	seq    atomic.Int64
}

// NewRedis creates a Redis-backed sliding-window limiter from a redis:// URL.
func NewRedis(url string, config Config) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	return NewRedisWithClient(redis.NewClient(opts), config), nil
}

// NewRedisWithClient wraps an existing client, for tests and shared pools.
func NewRedisWithClient(client *redis.Client, config Config) *Redis {
	return &Redis{
		client: client,
		config: config.withDefaults(),
		now:    time.Now,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	now := r.now()
	windowStart := now.Add(-r.config.Window).UnixMicro()

	admitted, err := allowScript.Run(ctx, r.client,
		[]string{redisKeyPrefix + key},
		strconv.FormatInt(windowStart, 10),
		strconv.Itoa(r.config.Limit),
		strconv.FormatInt(now.UnixMicro(), 10),
		strconv.FormatInt(r.seq.Add(1), 10),
		strconv.FormatInt(r.config.Window.Milliseconds(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return admitted == 1, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
