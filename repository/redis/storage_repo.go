package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/campus/domain"
	"github.com/fastygo/campus/repository"
)

type storageRepository struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewStorageRepository creates a Redis-backed local storage. Every write
// refreshes the key TTL so an abandoned profile expires on its own.
func NewStorageRepository(client *redislib.Client, prefix string, ttl time.Duration) repository.LocalStorage {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if prefix == "" {
		prefix = "campus:"
	}
	return &storageRepository{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *storageRepository) Get(ctx context.Context, key string) (string, error) {
	result, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", domain.ErrKeyNotFound
		}
		return "", err
	}
	return result, nil
}

func (r *storageRepository) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *storageRepository) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	return r.client.Del(ctx, full...).Err()
}

func (r *storageRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *storageRepository) key(key string) string {
	return fmt.Sprintf("%s%s", r.prefix, key)
}
