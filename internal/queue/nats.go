package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSQueue implements Queue using NATS JetStream. Each subscribed topic
// gets a file-backed stream and a durable consumer with manual acks, so
// unacked messages are redelivered after a restart.
type NATSQueue struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	subscriptions map[string]*nats.Subscription
	incoming      chan Message
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.RWMutex
}

func newNATSQueue(url string) (*NATSQueue, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &NATSQueue{
		conn:          conn,
		js:            js,
		subscriptions: make(map[string]*nats.Subscription),
		incoming:      make(chan Message),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Publish publishes a message to a subject using JetStream.
func (q *NATSQueue) Publish(ctx context.Context, topic string, value []byte) error {
	if _, err := q.js.PublishAsync(topic, value); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", topic, err)
	}
	return nil
}

// PublishBatch publishes all messages asynchronously and waits for the
// acknowledgments in one round trip.
func (q *NATSQueue) PublishBatch(ctx context.Context, messages []Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	futures := make([]nats.PubAckFuture, 0, len(messages))
	for _, msg := range messages {
		future, err := q.js.PublishAsync(msg.Topic, msg.Value)
		if err != nil {
			continue
		}
		futures = append(futures, future)
	}

	select {
	case <-q.js.PublishAsyncComplete():
	case <-ctx.Done():
		return len(futures), fmt.Errorf("timeout waiting for batch publish: %w", ctx.Err())
	}

	successCount := 0
	for _, future := range futures {
		select {
		case <-future.Ok():
			successCount++
		case <-future.Err():
		default:
			successCount++
		}
	}
	return successCount, nil
}

// Subscribe creates a durable JetStream consumer per topic and funnels
// deliveries into the shared fetch channel.
func (q *NATSQueue) Subscribe(topics ...string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, topic := range topics {
		if _, exists := q.subscriptions[topic]; exists {
			return fmt.Errorf("already subscribed to subject: %s", topic)
		}

		streamName := "retail-" + sanitizeConsumerName(topic)
		if _, err := q.js.StreamInfo(streamName); err != nil {
			_, err = q.js.AddStream(&nats.StreamConfig{
				Name:     streamName,
				Subjects: []string{topic},
				Storage:  nats.FileStorage,
			})
			if err != nil {
				return fmt.Errorf("failed to create stream for subject %s: %w", topic, err)
			}
		}

		durableName := "etl-" + sanitizeConsumerName(topic)
		subject := topic

		sub, err := q.js.Subscribe(subject, func(msg *nats.Msg) {
			select {
			case q.incoming <- Message{Topic: subject, Value: msg.Data, cursor: msg}:
			case <-q.ctx.Done():
			}
		},
			nats.Durable(durableName),
			nats.ManualAck(),
			nats.MaxAckPending(1000),
			nats.AckWait(30*time.Second),
			nats.DeliverAll(),
		)
		if err != nil {
			return fmt.Errorf("failed to subscribe to subject %s: %w", topic, err)
		}

		q.subscriptions[topic] = sub
	}
	return nil
}

// Fetch collects up to max messages across all subjects, waiting at most
// window.
func (q *NATSQueue) Fetch(ctx context.Context, max int, window time.Duration) ([]Message, error) {
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

// Commit acks every message. Unacked messages redeliver after AckWait.
func (q *NATSQueue) Commit(ctx context.Context, messages []Message) error {
	for _, msg := range messages {
		natsMsg, ok := msg.cursor.(*nats.Msg)
		if !ok {
			return fmt.Errorf("message on subject %s has no nats cursor", msg.Topic)
		}
		if err := natsMsg.Ack(); err != nil {
			return fmt.Errorf("failed to ack message on subject %s: %w", msg.Topic, err)
		}
	}
	return nil
}

// Close drains all subscriptions and closes the connection.
func (q *NATSQueue) Close() error {
	q.cancel()

	q.mu.Lock()
	defer q.mu.Unlock()

	for topic, sub := range q.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			continue
		}
		delete(q.subscriptions, topic)
	}

	q.conn.Close()
	return nil
}

// sanitizeConsumerName replaces characters JetStream rejects in stream and
// consumer names. Only A-Z, a-z, 0-9, dash and underscore are allowed.
func sanitizeConsumerName(subject string) string {
	result := make([]byte, 0, len(subject))
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}
