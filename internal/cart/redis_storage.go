package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStorage struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewRedisStorage keeps snapshots for 30 days, refreshed on every save.
func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{
		client:  client,
		baseTTL: 30 * 24 * time.Hour,
	}
}

func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, storageKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStorage) Save(ctx context.Context, key string, snapshot []byte) error {
	jitter := time.Duration(rand.Intn(60)) * time.Minute
	if err := r.client.Set(ctx, storageKey(key), snapshot, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, storageKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func storageKey(key string) string {
	return "storefront:" + key
}
