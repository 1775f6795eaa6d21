package routing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/qna-gateway/services/providers"
)

const redisKeyPrefix = "qna:cooldown:"

// markFailedScript stores max(existing, ARGV[1]) with a PX of ARGV[2].
// Running it server-side keeps concurrent writers from shortening a deadline.
var markFailedScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local deadline = tonumber(ARGV[1])
if deadline > current then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
end
return 0
`)

// RedisCooldown shares cooldown deadlines between gateway replicas.
// Redis errors are logged and the provider is treated as available.
type RedisCooldown struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// ConnectRedis parses url, applies password when set and pings the server
func ConnectRedis(ctx context.Context, url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

// NewRedisCooldown creates a tracker backed by rdb
func NewRedisCooldown(rdb *redis.Client, logger *zap.Logger) *RedisCooldown {
	return &RedisCooldown{rdb: rdb, logger: logger}
}

func cooldownKey(id providers.ProviderID) string {
	return redisKeyPrefix + string(id)
}

// IsAvailable implements CooldownTracker
func (c *RedisCooldown) IsAvailable(ctx context.Context, id providers.ProviderID, now time.Time) bool {
	deadline, ok, err := c.deadline(ctx, id)
	if err != nil {
		c.logger.Warn("cooldown lookup failed, treating provider as available",
			zap.String("provider", id.String()),
			zap.Error(err))
		return true
	}
	return !ok || now.UnixMilli() >= deadline.UnixMilli()
}

// MarkFailed implements CooldownTracker
func (c *RedisCooldown) MarkFailed(ctx context.Context, id providers.ProviderID, now time.Time, d time.Duration) {
	ttl := d.Milliseconds()
	if ttl <= 0 {
		return
	}
	deadline := now.Add(d).UnixMilli()

	if err := markFailedScript.Run(ctx, c.rdb, []string{cooldownKey(id)}, deadline, ttl).Err(); err != nil {
		c.logger.Warn("failed to store cooldown",
			zap.String("provider", id.String()),
			zap.Duration("cooldown", d),
			zap.Error(err))
	}
}

// Snapshot implements CooldownTracker
func (c *RedisCooldown) Snapshot(ctx context.Context, now time.Time) map[providers.ProviderID]time.Time {
	out := make(map[providers.ProviderID]time.Time)
	for _, id := range providers.Known {
		deadline, ok, err := c.deadline(ctx, id)
		if err != nil {
			c.logger.Warn("cooldown lookup failed", zap.String("provider", id.String()), zap.Error(err))
			continue
		}
		if ok && now.Before(deadline) {
			out[id] = deadline
		}
	}
	return out
}

func (c *RedisCooldown) deadline(ctx context.Context, id providers.ProviderID) (time.Time, bool, error) {
	val, err := c.rdb.Get(ctx, cooldownKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get failed: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid deadline %q: %w", val, err)
	}
	return time.UnixMilli(ms), true, nil
}
