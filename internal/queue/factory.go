package queue

import (
	"fmt"
	"strings"

	"github.com/ramahrk/data-pipeline/internal/config"
)

// Supported queue backends.
const (
	TypeKafka  = "kafka"
	TypeNATS   = "nats"
	TypeRedis  = "redis"
	TypeMemory = "memory"
)

// NewQueue creates a Queue from configuration. Kafka is the default when no
// type is set.
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	queueType := strings.ToLower(cfg.Type)
	if queueType == "" {
		queueType = TypeKafka
	}

	switch queueType {
	case TypeKafka:
		return newKafkaQueue(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
		})

	case TypeNATS:
		return newNATSQueue(cfg.URL)

	case TypeRedis:
		return newRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			Group:    cfg.RedisGroup,
			Consumer: cfg.RedisConsumer,
		})

	case TypeMemory:
		return NewMemoryQueue(), nil

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: kafka, nats, redis, memory)", queueType)
	}
}

// NewPublisher creates a publish-only view of the configured queue.
func NewPublisher(cfg config.QueueConfig) (Publisher, error) {
	return NewQueue(cfg)
}

// NewSubscriber creates a consume-only view of the configured queue.
func NewSubscriber(cfg config.QueueConfig) (Subscriber, error) {
	return NewQueue(cfg)
}
