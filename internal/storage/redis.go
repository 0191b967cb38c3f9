package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	redisclient "github.com/arenahub/playground-client/internal/redis"
)

// RedisBackend is a durable tier for headless deployments that share state.
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

func NewRedisBackend(client *redis.Client, namespace string) *RedisBackend {
	return &RedisBackend{client: client, namespace: namespace}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := b.client.Get(ctx, redisclient.StorageKey(b.namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	return b.client.Set(ctx, redisclient.StorageKey(b.namespace, key), value, 0).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, redisclient.StorageKey(b.namespace, key)).Err()
}

func (b *RedisBackend) Probe(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return err
	}
	return roundTripProbe(ctx, b)
}
