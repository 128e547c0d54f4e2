package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocations records revoked session token ids until they expire.
type RedisRevocations struct {
	rdb *redis.Client
}

func NewRedisRevocations(s *RedisService) *RedisRevocations {
	return &RedisRevocations{rdb: s.Client()}
}

func revokedKey(id string) string {
	return keyPrefix + "revoked:" + id
}

func (r *RedisRevocations) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKey(id), 1, ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocations is the in-process revocation list used when Redis is
// off. Expired ids are dropped by Cleanup.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: map[string]time.Time{}}
}

func (r *MemoryRevocations) Revoke(_ context.Context, id string, until time.Time) error {
	r.mu.Lock()
	r.revoked[id] = until
	r.mu.Unlock()
	return nil
}

func (r *MemoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[id]
	return ok && time.Now().Before(until), nil
}

// Cleanup drops expired entries every interval until ctx is done.
func (r *MemoryRevocations) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.mu.Lock()
			for id, until := range r.revoked {
				if !now.Before(until) {
					delete(r.revoked, id)
				}
			}
			r.mu.Unlock()
		}
	}
}
