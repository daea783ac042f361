package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"barbershop-service/internal/schedule"
)

// SlotCache keeps generated slot lists per date. Implementations must be safe to call
// with a cancelled context and never fail the request: a miss is always acceptable.
type SlotCache interface {
	Get(ctx context.Context, key string) ([]schedule.TimeSlot, bool)
	Set(ctx context.Context, key string, slots []schedule.TimeSlot)
	InvalidateDate(ctx context.Context, date string)
	InvalidateAll(ctx context.Context)
}

func slotCacheKey(date string, duration int, includeUnavailable bool) string {
	return fmt.Sprintf("slots:%s:%d:%t", date, duration, includeUnavailable)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) ([]schedule.TimeSlot, bool) { return nil, false }
func (noopCache) Set(context.Context, string, []schedule.TimeSlot)        {}
func (noopCache) InvalidateDate(context.Context, string)                  {}
func (noopCache) InvalidateAll(context.Context)                           {}

// NoopCache disables slot caching.
func NoopCache() SlotCache { return noopCache{} }

type RedisSlotCache struct {
	Client *redis.Client
	TTL    time.Duration
	Log    *zap.Logger
}

// NewRedisSlotCache connects and pings Redis.
func NewRedisSlotCache(addr, password string, db int, ttl time.Duration, log *zap.Logger) (*RedisSlotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisSlotCache{Client: client, TTL: ttl, Log: log}, nil
}

func (c *RedisSlotCache) Get(ctx context.Context, key string) ([]schedule.TimeSlot, bool) {
	raw, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.Log.Warn("slot cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var slots []schedule.TimeSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.Log.Warn("slot cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return slots, true
}

func (c *RedisSlotCache) Set(ctx context.Context, key string, slots []schedule.TimeSlot) {
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, key, raw, c.TTL).Err(); err != nil {
		c.Log.Warn("slot cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisSlotCache) InvalidateDate(ctx context.Context, date string) {
	c.deleteMatching(ctx, "slots:"+date+":*")
}

func (c *RedisSlotCache) InvalidateAll(ctx context.Context) {
	c.deleteMatching(ctx, "slots:*")
}

func (c *RedisSlotCache) deleteMatching(ctx context.Context, pattern string) {
	iter := c.Client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.Log.Warn("slot cache scan failed", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		c.Log.Warn("slot cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

func (c *RedisSlotCache) Close() error {
	return c.Client.Close()
}
