package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mtraver/sensorstats/measurement"
)

// Redis is a Cache shared between processes. Entries expire after the TTL
// given to NewRedis; a zero TTL keeps them until overwritten.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu    sync.RWMutex
	total int
	hits  int
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Redis) key(k string) string {
	return c.prefix + k
}

func (c *Redis) Get(ctx context.Context, key string, r *measurement.Reading) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++

	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}

	c.hits++
	return json.Unmarshal(data, r)
}

func (c *Redis) Add(ctx context.Context, key string, r *measurement.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	ok, err := c.client.SetNX(ctx, c.key(key), data, c.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStored
	}
	return nil
}

func (c *Redis) Set(ctx context.Context, key string, r *measurement.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

func (c *Redis) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Total: c.total,
		Hits:  c.hits,
	}
}

// Ping checks that the Redis server is reachable.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}
