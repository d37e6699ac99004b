package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

var errNoRedis = errors.New("store: no redis address")

type redisBackend struct {
	client *redis.Client
	prefix string
}

func openRedis(ctx context.Context, o Options) (Backend, error) {
	if o.Redis == "" {
		return nil, errNoRedis
	}

	client := redis.NewClient(&redis.Options{
		Addr: o.Redis,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &redisBackend{
		client: client,
		prefix: o.Name + ":",
	}, nil
}

func (b *redisBackend) Name() string {
	return DriverRedis
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := b.client.Get(ctx, b.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotExist
	case err != nil:
		return nil, err
	}
	return value, nil
}

func (b *redisBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.client.Set(ctx, b.prefix+key, value, 0).Err()
}

func (b *redisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.prefix+key).Err()
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}
