package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketscout/internal/logger"
)

// AlertsChannel carries every new alert, for all users.
const AlertsChannel = "marketscout:alerts"

// Publisher sends a message to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel, message string) error
}

// RedisPublisher publishes with PUBLISH.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, message string) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// RedisSubscriber represents a subscription to a Redis channel.
type RedisSubscriber struct {
	pubsub *redis.PubSub
}

// NewRedisSubscriber subscribes to channel and waits for the confirmation.
func NewRedisSubscriber(ctx context.Context, client redis.UniversalClient, channel string) (*RedisSubscriber, error) {
	pubsub := client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	logger.Log.Info("Subscribed to Redis channel", zap.String("channel", channel))
	return &RedisSubscriber{pubsub: pubsub}, nil
}

// ReceiveMessage waits for and returns the next message.
func (s *RedisSubscriber) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	return s.pubsub.ReceiveMessage(ctx)
}

func (s *RedisSubscriber) Close() error {
	return s.pubsub.Close()
}
