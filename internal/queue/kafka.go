package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds Apache Kafka connection settings.
type KafkaConfig struct {
	Brokers       []string      // Broker addresses
	GroupID       string        // Consumer group ID
	BatchSize     int           // Producer batch size (default: 100)
	BatchTimeout  time.Duration // Producer batch timeout (default: 10ms)
	RequiredAcks  int           // 0=none, 1=leader, -1=all (default: 1)
	MaxRetries    int           // Producer retries (default: 3)
	RetryBackoff  time.Duration // Backoff between retries (default: 100ms)
	CommitRetries int           // Consumer commit retries (default: 3)
}

// kafkaCursor ties a fetched message back to the reader that must commit it.
type kafkaCursor struct {
	reader *kafka.Reader
	msg    kafka.Message
}

// KafkaQueue implements Queue using Apache Kafka.
type KafkaQueue struct {
	config   KafkaConfig
	writers  map[string]*kafka.Writer
	readers  map[string]*kafka.Reader
	incoming chan Message
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
}

func newKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	if cfg.GroupID == "" {
		cfg.GroupID = "data-pipeline-etl"
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.CommitRetries == 0 {
		cfg.CommitRetries = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaQueue{
		config:   cfg,
		writers:  make(map[string]*kafka.Writer),
		readers:  make(map[string]*kafka.Reader),
		incoming: make(chan Message),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (q *KafkaQueue) getOrCreateWriter(topic string) *kafka.Writer {
	q.mu.Lock()
	defer q.mu.Unlock()

	if writer, exists := q.writers[topic]; exists {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(q.config.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    q.config.BatchSize,
		BatchTimeout: q.config.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(q.config.RequiredAcks),
		MaxAttempts:  q.config.MaxRetries,
	}

	q.writers[topic] = writer
	return writer
}

// Publish publishes a message to a Kafka topic.
func (q *KafkaQueue) Publish(ctx context.Context, topic string, value []byte) error {
	writer := q.getOrCreateWriter(topic)

	msg := kafka.Message{
		Value: value,
		Time:  time.Now(),
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", topic, err)
	}
	return nil
}

// PublishBatch publishes messages grouped per topic.
func (q *KafkaQueue) PublishBatch(ctx context.Context, messages []Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	topicMessages := make(map[string][]kafka.Message)
	for _, msg := range messages {
		topicMessages[msg.Topic] = append(topicMessages[msg.Topic], kafka.Message{
			Value: msg.Value,
			Time:  time.Now(),
		})
	}

	successCount := 0
	var lastErr error

	for topic, msgs := range topicMessages {
		writer := q.getOrCreateWriter(topic)
		if err := writer.WriteMessages(ctx, msgs...); err != nil {
			lastErr = err
			continue
		}
		successCount += len(msgs)
	}

	if lastErr != nil && successCount == 0 {
		return 0, fmt.Errorf("failed to publish batch: %w", lastErr)
	}
	return successCount, nil
}

// Subscribe starts a consumer-group reader per topic. Fetched messages stay
// uncommitted until Commit is called with them.
func (q *KafkaQueue) Subscribe(topics ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, topic := range topics {
		if _, exists := q.readers[topic]; exists {
			return fmt.Errorf("already subscribed to topic: %s", topic)
		}

		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  q.config.Brokers,
			GroupID:  q.config.GroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  1 * time.Second,
		})

		q.readers[topic] = reader
		q.wg.Add(1)
		go q.fetchLoop(topic, reader)
	}
	return nil
}

// fetchLoop funnels one reader into the shared incoming channel. The
// unbuffered channel provides backpressure: no more is fetched than Fetch
// consumes.
func (q *KafkaQueue) fetchLoop(topic string, reader *kafka.Reader) {
	defer q.wg.Done()
	for {
		msg, err := reader.FetchMessage(q.ctx)
		if err != nil {
			if q.ctx.Err() != nil {
				return
			}
			continue
		}

		select {
		case q.incoming <- Message{
			Topic:  topic,
			Value:  msg.Value,
			cursor: kafkaCursor{reader: reader, msg: msg},
		}:
		case <-q.ctx.Done():
			return
		}
	}
}

// Fetch collects up to max messages across all subscribed topics, waiting
// at most window.
func (q *KafkaQueue) Fetch(ctx context.Context, max int, window time.Duration) ([]Message, error) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	var batch []Message
	for len(batch) < max {
		select {
		case msg := <-q.incoming:
			batch = append(batch, msg)
		case <-timer.C:
			return batch, nil
		case <-ctx.Done():
			return batch, ctx.Err()
		}
	}
	return batch, nil
}

// Commit commits consumer-group offsets for the messages, grouped per
// reader, retrying transient failures.
func (q *KafkaQueue) Commit(ctx context.Context, messages []Message) error {
	byReader := make(map[*kafka.Reader][]kafka.Message)
	for _, msg := range messages {
		cur, ok := msg.cursor.(kafkaCursor)
		if !ok {
			return fmt.Errorf("message on topic %s has no kafka cursor", msg.Topic)
		}
		byReader[cur.reader] = append(byReader[cur.reader], cur.msg)
	}

	for reader, msgs := range byReader {
		var err error
		for i := 0; i < q.config.CommitRetries; i++ {
			if err = reader.CommitMessages(ctx, msgs...); err == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(q.config.RetryBackoff)
		}
		if err != nil {
			return fmt.Errorf("failed to commit offsets: %w", err)
		}
	}
	return nil
}

// Close stops all fetch loops and closes readers and writers.
func (q *KafkaQueue) Close() error {
	q.cancel()
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	var lastErr error
	for topic, reader := range q.readers {
		if err := reader.Close(); err != nil {
			lastErr = err
		}
		delete(q.readers, topic)
	}
	for topic, writer := range q.writers {
		if err := writer.Close(); err != nil {
			lastErr = err
		}
		delete(q.writers, topic)
	}
	return lastErr
}

// Stats returns writer stats for a topic.
func (q *KafkaQueue) Stats(topic string) kafka.WriterStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if writer, exists := q.writers[topic]; exists {
		return writer.Stats()
	}
	return kafka.WriterStats{}
}
