// Package cache содержит реализацию кэша поверх Redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/wastewatch-backend/internal/logger"
	"github.com/ignatzorin/wastewatch-backend/internal/service"
)

const scanBatch = 200

// RedisCache хранит ключи в общем Redis, кэш одинаков для всех экземпляров.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace}
}

var _ service.Cache = (*RedisCache)(nil)

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, c.namespace+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("key", key).Warn("redis: ошибка чтения кэша")
		}
		return nil, false
	}
	return raw, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, c.namespace+key, value, ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("redis: ошибка записи кэша")
	}
}

// InvalidateByPrefix удаляет ключи через SCAN, без KEYS.
func (c *RedisCache) InvalidateByPrefix(ctx context.Context, prefix string) {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.namespace+prefix+"*", scanBatch).Result()
		if err != nil {
			logger.Log.WithError(err).WithField("prefix", prefix).Warn("redis: ошибка сканирования ключей")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				logger.Log.WithError(err).Warn("redis: ошибка удаления ключей")
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// NewClient подключается к Redis и проверяет соединение.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Log.WithField("addr", addr).Info("redis: соединение установлено")
	return client, nil
}
