package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "foodctl:credentials"

// RedisOptions configures the redis backend. When Client is set it is used as
// is and Addr, Password and DB are ignored.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
	Client   redis.UniversalClient
}

// RedisBackend keeps the credential fields in a single redis hash so a write
// replaces all of them in one transaction.
type RedisBackend struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisBackend(opts RedisOptions) (*RedisBackend, error) {
	client := opts.Client
	if client == nil {
		if opts.Addr == "" {
			return nil, errors.New("redis address is required")
		}
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
	}
	key := opts.Key
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{client: client, key: key, ttl: opts.TTL}, nil
}

func (r *RedisBackend) Name() string { return BackendRedis }

func (r *RedisBackend) Load(ctx context.Context) (map[string]string, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from redis: %w", err)
	}
	return fields, nil
}

func (r *RedisBackend) Save(ctx context.Context, fields map[string]string) error {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.HSet(ctx, r.key, values)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write credentials to redis: %w", err)
	}
	return nil
}

func (r *RedisBackend) Erase(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete credentials from redis: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
