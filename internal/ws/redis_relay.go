package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/wastewatch-backend/internal/logger"
)

// DefaultChannel канал Redis для событий пользователей.
const DefaultChannel = "wastewatch:notifications"

// RedisRelay пересылает события через Redis Pub/Sub, чтобы пользователь
// получил их на любом экземпляре, где открыт его сокет.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel}
}

var _ Publisher = (*RedisRelay)(nil)

func (r *RedisRelay) Publish(ctx context.Context, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать событие: %w", err)
	}
	return r.client.Publish(ctx, r.channel, raw).Err()
}

// Run читает канал и передаёт события локальному хабу до отмены контекста.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("ws: не удалось подписаться на %s: %w", r.channel, err)
	}
	logger.Log.WithField("channel", r.channel).Info("ws: подписка на события Redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Log.WithError(err).Warn("ws: некорректное событие в канале")
				continue
			}
			hub.Deliver(env)
		}
	}
}
