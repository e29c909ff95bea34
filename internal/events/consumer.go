package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"marketscout/internal/logger"
)

const pollTimeout = 500 * time.Millisecond

// Handler processes one decoded event.
type Handler func(ctx context.Context, ev TrendScored) error

type Consumer struct {
	consumer *kafka.Consumer
}

func NewConsumer(brokers, groupID, topic string) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"group.id":          groupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	logger.Log.Info("Listening for trend events", zap.String("topic", topic), zap.String("group_id", groupID))
	return &Consumer{consumer: c}, nil
}

// Run feeds events to handle until ctx is cancelled. Malformed events and handler
// failures are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msg, err := c.consumer.ReadMessage(pollTimeout)
		if err != nil {
			var kafkaErr kafka.Error
			if errors.As(err, &kafkaErr) && kafkaErr.IsTimeout() {
				continue
			}
			logger.Log.Error("Kafka consumer error", zap.Error(err))
			continue
		}

		ev, err := Decode(msg.Value)
		if err != nil {
			logger.Log.Warn("Skipping malformed event",
				zap.Int64("offset", int64(msg.TopicPartition.Offset)),
				zap.Error(err),
			)
			continue
		}

		if err := handle(ctx, ev); err != nil {
			logger.Log.Error("Failed to handle trend event",
				zap.String("event_id", ev.ID),
				zap.Int64("product_id", ev.ProductID),
				zap.Error(err),
			)
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
