package persistence

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisStorage(client *redis.Client, sessionID string) *RedisStorage {
	return &RedisStorage{
		client:    client,
		sessionID: sessionID,
		baseTTL:   30 * 24 * time.Hour,
	}
}

// RedisStorage is the per-session key-value storage for anonymous carts.
// Keys are namespaced by session id so two devices never share a cart.
// Entries expire; an abandoned anonymous cart is not worth keeping forever.
type RedisStorage struct {
	client    *redis.Client
	sessionID string
	baseTTL   time.Duration
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.storageKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	jitter := time.Duration(rand.Intn(60)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, r.storageKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) storageKey(key string) string {
	return fmt.Sprintf("session:%s:%s", r.sessionID, key)
}
