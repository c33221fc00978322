package publish

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/protocol"
)

// RedisPublisher publishes prediction events on a Redis channel
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher connects to Redis and checks the connection
func NewRedisPublisher(ctx context.Context, addr, password string, db int, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisPublisher{client: client, channel: channel}, nil
}

func (r *RedisPublisher) Name() string { return "redis" }

// Publish sends the JSON-encoded event to the channel
func (r *RedisPublisher) Publish(ctx context.Context, event *protocol.PredictionEvent) error {
	data, err := protocol.EncodePredictionEvent(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", r.channel, err)
	}
	return nil
}

func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
