package history

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"access-api/result"
)

// Cache wraps a Store with a Redis read-through copy of recent records.
// Redis failures never fail a lookup; the base store stays authoritative.
type Cache struct {
	base  Store
	redis *redis.Client
	ttl   time.Duration
}

type cachedRecord struct {
	Date    time.Time `json:"date"`
	Payload string    `json:"payload"`
}

// NewCache creates a caching Store wrapper using the provided Redis client and TTL.
func NewCache(base Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("history.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) Find(ctx context.Context, commandID, action string) (result.Option[Record], error) {
	if rec, ok := c.load(ctx, commandID, action); ok {
		return result.Some(rec), nil
	}
	found, err := c.base.Find(ctx, commandID, action)
	if err != nil {
		return found, err
	}
	if rec, ok := found.Get(); ok {
		c.store(ctx, rec)
	}
	return found, nil
}

func (c *Cache) Save(ctx context.Context, rec Record) error {
	if err := c.base.Save(ctx, rec); err != nil {
		return err
	}
	c.store(ctx, rec)
	return nil
}

func (c *Cache) load(ctx context.Context, commandID, action string) (Record, bool) {
	if c.redis == nil {
		return Record{}, false
	}
	key := historyCacheKey(commandID, action)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return Record{}, false
	}
	var cached cachedRecord
	if err := sonic.Unmarshal(data, &cached); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return Record{}, false
	}
	return Record{CommandID: commandID, Action: action, Date: cached.Date, Payload: cached.Payload}, true
}

func (c *Cache) store(ctx context.Context, rec Record) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(cachedRecord{Date: rec.Date, Payload: rec.Payload})
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, historyCacheKey(rec.CommandID, rec.Action), data, c.ttl).Err()
}

func historyCacheKey(commandID, action string) string {
	return "history:" + commandID + ":" + action
}
