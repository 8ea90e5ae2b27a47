package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/becertain-core/internal/monitoring"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// redisStore implements KVStore against a single Redis/Valkey node.
type redisStore struct {
	client *redis.Client
	logger logger.Logger
}

func NewRedisStore(addr string, db int, password string, log logger.Logger) (KVStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &redisStore{client: client, logger: log}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := boundedCtx(ctx)
	defer cancel()
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		monitoring.RecordStoreOperation("get", "miss")
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if err != nil {
		monitoring.RecordStoreOperation("get", "error")
		return nil, err
	}
	monitoring.RecordStoreOperation("get", "hit")
	return b, nil
}

func (r *redisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		monitoring.RecordStoreOperation("set", "error")
		return fmt.Errorf("marshal value for key %s: %w", key, err)
	}
	ctx, cancel := boundedCtx(ctx)
	defer cancel()
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		monitoring.RecordStoreOperation("set", "error")
		return err
	}
	monitoring.RecordStoreOperation("set", "success")
	return nil
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := boundedCtx(ctx)
	defer cancel()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		monitoring.RecordStoreOperation("delete", "error")
		return err
	}
	monitoring.RecordStoreOperation("delete", "success")
	return nil
}

func (r *redisStore) RPush(ctx context.Context, key string, value string, ttl time.Duration, maxLen int) error {
	ctx, cancel := boundedCtx(ctx)
	defer cancel()
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, value)
	if maxLen > 0 {
		pipe.LTrim(ctx, key, int64(-maxLen), -1)
	}
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		monitoring.RecordStoreOperation("rpush", "error")
		return err
	}
	monitoring.RecordStoreOperation("rpush", "success")
	return nil
}

func (r *redisStore) LRange(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := boundedCtx(ctx)
	defer cancel()
	items, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		monitoring.RecordStoreOperation("lrange", "error")
		return nil, err
	}
	monitoring.RecordStoreOperation("lrange", "success")
	return items, nil
}

func encodeValue(value interface{}) ([]byte, error) {
	switch x := value.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	default:
		return json.Marshal(x)
	}
}
