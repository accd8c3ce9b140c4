package quota

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "garita:ocr:usage:"

// redisKeyTTL keeps a month's counter around past month end for reporting,
// then lets it fall out on its own.
const redisKeyTTL = 45 * 24 * time.Hour

// incrWithCap increments the counter only while it is below the ceiling and
// returns the resulting total, or -1 when the call was rejected. Running it
// as a script keeps check-then-increment atomic, so concurrent kiosks never
// push a month past its limit.
var incrWithCap = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return -1
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return current
`)

// RedisCounter counts OCR usage in Redis so every kiosk instance shares one
// monthly budget.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Increment counts one call against the month unless the ceiling is already
// reached. A rejected call does not move the counter.
func (c *RedisCounter) Increment(ctx context.Context, year int, month time.Month, ceiling int64) (int64, bool, error) {
	key := redisKeyPrefix + periodKey(year, month)
	used, err := incrWithCap.Run(ctx, c.client, []string{key}, ceiling, int(redisKeyTTL.Seconds())).Int64()
	if err != nil {
		return 0, false, err
	}
	if used < 0 {
		used, err = c.Used(ctx, year, month)
		return used, false, err
	}
	return used, true, nil
}

// Used reports the recorded calls for a month without counting one.
func (c *RedisCounter) Used(ctx context.Context, year int, month time.Month) (int64, error) {
	used, err := c.client.Get(ctx, redisKeyPrefix+periodKey(year, month)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return used, err
}
