package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator remembers processed inbound message ids so a webhook
// redelivered by the gateway is acknowledged without being handled twice.
type Deduplicator interface {
	// MarkProcessed returns true if id was newly marked, false if it was
	// already processed within ttl.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// RedisDeduplicator implements Deduplicator using Redis SETNX, suitable when
// several instances receive webhooks.
type RedisDeduplicator struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisDeduplicator creates a Redis-backed deduplicator and checks the connection
func NewRedisDeduplicator(ctx context.Context, addr, password string, db int) (*RedisDeduplicator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisDeduplicatorWithClient(client, ""), nil
}

// NewRedisDeduplicatorWithClient wraps an existing client
func NewRedisDeduplicatorWithClient(client *redis.Client, keyPrefix string) *RedisDeduplicator {
	if keyPrefix == "" {
		keyPrefix = "webhook:processed:"
	}
	return &RedisDeduplicator{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed sets the key only if absent, with a TTL, in one atomic call
func (d *RedisDeduplicator) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.keyPrefix+id, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processed: %w", err)
	}
	return ok, nil
}

// Close closes the Redis client
func (d *RedisDeduplicator) Close() error {
	return d.client.Close()
}

// MemoryDeduplicator implements Deduplicator with an in-process map. It is
// enough for a single instance.
type MemoryDeduplicator struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDeduplicator creates an in-memory deduplicator
func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkProcessed records id until ttl elapses. Expired entries are swept on
// write so the map does not grow without bound.
func (d *MemoryDeduplicator) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expiresAt, exists := d.entries[id]; exists && now.Before(expiresAt) {
		return false, nil
	}
	for key, expiresAt := range d.entries {
		if !now.Before(expiresAt) {
			delete(d.entries, key)
		}
	}
	d.entries[id] = now.Add(ttl)
	return true, nil
}

var (
	_ Deduplicator = (*RedisDeduplicator)(nil)
	_ Deduplicator = (*MemoryDeduplicator)(nil)
)
