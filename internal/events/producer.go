package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"marketscout/internal/logger"
	"marketscout/internal/models"
)

// KafkaPublisher produces TrendScored events keyed by product id.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	done     chan struct{}
}

func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	pub := &KafkaPublisher{producer: p, topic: topic, done: make(chan struct{})}
	go pub.reportDeliveries()
	return pub, nil
}

func (p *KafkaPublisher) PublishTrendScored(_ context.Context, score models.TrendScore) error {
	value, err := json.Marshal(NewTrendScored(score))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(strconv.FormatInt(score.ProductID, 10)),
		Value:          value,
	}, nil)
	if err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) reportDeliveries() {
	defer close(p.done)
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				logger.Log.Error("Kafka delivery failed",
					zap.String("topic", p.topic),
					zap.Error(ev.TopicPartition.Error),
				)
			}
		case kafka.Error:
			logger.Log.Warn("Kafka producer error", zap.Error(ev))
		}
	}
}

// Close flushes outstanding messages for up to five seconds.
func (p *KafkaPublisher) Close() {
	if remaining := p.producer.Flush(5000); remaining > 0 {
		logger.Log.Warn("Kafka messages left unflushed", zap.Int("count", remaining))
	}
	p.producer.Close()
	<-p.done
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishTrendScored(context.Context, models.TrendScore) error { return nil }
