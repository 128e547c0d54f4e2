package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProjectionCache stores computed projections between ledger writes. It is
// never the source of truth: any write invalidates everything.
//
// Callers read Generation before loading the data a projection is built
// from and pass it to Set. A value built from data read before an
// Invalidate is never served afterwards.
type ProjectionCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, gen int64, key string, value any) error
	Invalidate(ctx context.Context) error
}

// RedisProjectionCache keeps JSON encoded projections under a generation
// number. Invalidate bumps the generation, which orphans every older key
// until its TTL expires.
type RedisProjectionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisProjectionCache(s *RedisService, ttl time.Duration) *RedisProjectionCache {
	return &RedisProjectionCache{rdb: s.Client(), ttl: ttl}
}

const generationKey = keyPrefix + "projection:generation"

func (c *RedisProjectionCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("reading cache generation: %w", err)
	}
	return gen, nil
}

func projectionKey(gen int64, name string) string {
	return keyPrefix + "projection:" + strconv.FormatInt(gen, 10) + ":" + name
}

func (c *RedisProjectionCache) Get(ctx context.Context, name string, dst any) (bool, error) {
	gen, err := c.Generation(ctx)
	if err != nil {
		return false, err
	}
	data, err := c.rdb.Get(ctx, projectionKey(gen, name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading cached %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decoding cached %s: %w", name, err)
	}
	return true, nil
}

// Set stores value under gen. A value for a generation that has since been
// bumped lands on a key no Get will read again.
func (c *RedisProjectionCache) Set(ctx context.Context, gen int64, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return c.rdb.Set(ctx, projectionKey(gen, name), data, c.ttl).Err()
}

func (c *RedisProjectionCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, generationKey).Err()
}

// MemoryProjectionCache is the in-process cache used when Redis is off.
type MemoryProjectionCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	gen     int64
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

func NewMemoryProjectionCache(ttl time.Duration) *MemoryProjectionCache {
	return &MemoryProjectionCache{ttl: ttl, entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryProjectionCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *MemoryProjectionCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !c.now().Before(e.expires) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return true, nil
}

// Set drops value when gen is older than the current generation.
func (c *MemoryProjectionCache) Set(_ context.Context, gen int64, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.entries[key] = memoryEntry{data: data, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryProjectionCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.gen++
	clear(c.entries)
	c.mu.Unlock()
	return nil
}

// NopProjectionCache never stores anything.
type NopProjectionCache struct{}

func (NopProjectionCache) Generation(context.Context) (int64, error)      { return 0, nil }
func (NopProjectionCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (NopProjectionCache) Set(context.Context, int64, string, any) error  { return nil }
func (NopProjectionCache) Invalidate(context.Context) error               { return nil }
