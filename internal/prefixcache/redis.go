package prefixcache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds settings for the Redis storage backend.
type RedisConfig struct {
	// Addr is host:port.
	Addr string

	// Password authenticates when non-empty.
	Password string

	// DB selects the logical database.
	DB int

	// Logger receives backend events.
	Logger zerolog.Logger
}

// RedisStorage persists cache payloads as plain Redis strings keyed by
// object id.
type RedisStorage struct {
	client *redis.Client
	logger zerolog.Logger
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage connects and verifies the server is reachable.
func NewRedisStorage(ctx context.Context, cfg RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		logger: cfg.Logger.With().Str("component", "redisstorage").Logger(),
	}, nil
}

func (r *RedisStorage) Put(ctx context.Context, id string, data []byte) error {
	if err := r.client.Set(ctx, id, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", id, err)
	}
	return nil
}

func (r *RedisStorage) GetRange(ctx context.Context, id string, max int64) ([]byte, error) {
	// GETRANGE answers "" for absent keys, so existence is checked first.
	exists, err := r.client.Exists(ctx, id).Result()
	if err != nil {
		return nil, fmt.Errorf("redis exists %s: %w", id, err)
	}
	if exists == 0 {
		return nil, ErrObjectMissing
	}

	end := int64(-1)
	if max > 0 {
		end = max - 1
	}
	data, err := r.client.GetRange(ctx, id, 0, end).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis getrange %s: %w", id, err)
	}
	return data, nil
}

func (r *RedisStorage) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, id).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	return nil
}

func (r *RedisStorage) Size(ctx context.Context) (int64, error) {
	n, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("redis dbsize: %w", err)
	}
	return n, nil
}

// Close releases the connection pool.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
