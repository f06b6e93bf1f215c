package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis Streams connection settings.
type RedisConfig struct {
	URL      string // Redis URL (e.g., redis://localhost:6379)
	Password string // Optional password
	DB       int    // Database number (default: 0)
	Stream   string // Stream prefix (default: "retail")
	Group    string // Consumer group name (default: "data-pipeline-etl")
	Consumer string // Consumer name (default: hostname)
}

// redisCursor identifies one stream entry for XACK.
type redisCursor struct {
	stream string
	id     string
}

// RedisQueue implements Queue using Redis Streams with consumer groups.
// Fetch maps directly onto XREADGROUP, so no background readers are needed.
type RedisQueue struct {
	client  *redis.Client
	config  RedisConfig
	streams []string          // subscribed stream names, XReadGroup order
	topics  map[string]string // stream name back to topic
	mu      sync.RWMutex
}

func newRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = "retail"
	}
	if cfg.Group == "" {
		cfg.Group = "data-pipeline-etl"
	}
	if cfg.Consumer == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "consumer-1"
		}
		cfg.Consumer = hostname
	}

	return &RedisQueue{
		client: client,
		config: cfg,
		topics: make(map[string]string),
	}, nil
}

func (q *RedisQueue) streamName(topic string) string {
	return fmt.Sprintf("%s:%s", q.config.Stream, topic)
}

// Publish appends a message to the topic's stream.
func (q *RedisQueue) Publish(ctx context.Context, topic string, value []byte) error {
	stream := q.streamName(topic)

	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": value,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", stream, err)
	}
	return nil
}

// PublishBatch appends all messages in one pipeline round trip.
func (q *RedisQueue) PublishBatch(ctx context.Context, messages []Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	pipe := q.client.Pipeline()
	for _, msg := range messages {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: q.streamName(msg.Topic),
			ID:     "*",
			Values: map[string]interface{}{
				"data": msg.Value,
			},
		})
	}

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to execute batch publish: %w", err)
	}

	successCount := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			successCount++
		}
	}
	return successCount, nil
}

// Subscribe creates the consumer group on each topic's stream.
func (q *RedisQueue) Subscribe(topics ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, topic := range topics {
		stream := q.streamName(topic)
		if _, exists := q.topics[stream]; exists {
			return fmt.Errorf("already subscribed to topic: %s", topic)
		}

		err := q.client.XGroupCreateMkStream(ctx, stream, q.config.Group, "0").Err()
		if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("failed to create consumer group: %w", err)
		}

		q.streams = append(q.streams, stream)
		q.topics[stream] = topic
	}
	return nil
}

// Fetch reads up to max new entries across all subscribed streams, blocking
// at most window.
func (q *RedisQueue) Fetch(ctx context.Context, max int, window time.Duration) ([]Message, error) {
	q.mu.RLock()
	streams := make([]string, 0, 2*len(q.streams))
	streams = append(streams, q.streams...)
	for range q.streams {
		streams = append(streams, ">")
	}
	q.mu.RUnlock()

	if len(streams) == 0 {
		return nil, fmt.Errorf("no subscribed topics")
	}

	results, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.config.Group,
		Consumer: q.config.Consumer,
		Streams:  streams,
		Count:    int64(max),
		Block:    window,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from Redis streams: %w", err)
	}

	var batch []Message
	for _, s := range results {
		q.mu.RLock()
		topic := q.topics[s.Stream]
		q.mu.RUnlock()

		for _, msg := range s.Messages {
			data, ok := msg.Values["data"].(string)
			if !ok {
				// Malformed entry, ack so it never redelivers.
				q.client.XAck(ctx, s.Stream, q.config.Group, msg.ID)
				continue
			}
			batch = append(batch, Message{
				Topic:  topic,
				Value:  []byte(data),
				cursor: redisCursor{stream: s.Stream, id: msg.ID},
			})
		}
	}
	return batch, nil
}

// Commit acks the entries, grouped per stream.
func (q *RedisQueue) Commit(ctx context.Context, messages []Message) error {
	byStream := make(map[string][]string)
	for _, msg := range messages {
		cur, ok := msg.cursor.(redisCursor)
		if !ok {
			return fmt.Errorf("message on topic %s has no redis cursor", msg.Topic)
		}
		byStream[cur.stream] = append(byStream[cur.stream], cur.id)
	}

	for stream, ids := range byStream {
		if err := q.client.XAck(ctx, stream, q.config.Group, ids...).Err(); err != nil {
			return fmt.Errorf("failed to ack Redis stream %s: %w", stream, err)
		}
	}
	return nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
