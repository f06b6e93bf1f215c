// Package queue abstracts the message bus carrying streamed records. Four
// implementations share one contract: Kafka (the default), NATS JetStream,
// Redis Streams, and an in-memory queue for tests. Consumption is
// batch-oriented with explicit commit, so a crash between processing and
// commit redelivers the batch (at-least-once).
package queue

import (
	"context"
	"time"
)

// Message is one record on the bus. Topic names match dataset names. The
// cursor carries whatever the backend needs to acknowledge the message and
// must be passed back to Commit untouched.
type Message struct {
	Topic  string
	Value  []byte
	cursor any
}

// NewMessage builds an outbound message. Outbound messages carry no cursor.
func NewMessage(topic string, value []byte) Message {
	return Message{Topic: topic, Value: value}
}

// Publisher publishes messages to the bus.
type Publisher interface {
	// Publish publishes a single message to a topic.
	Publish(ctx context.Context, topic string, value []byte) error

	// PublishBatch publishes multiple messages and returns how many were
	// accepted by the backend.
	PublishBatch(ctx context.Context, messages []Message) (int, error)

	// Close releases the connection.
	Close() error
}

// Subscriber consumes messages in bounded batches.
type Subscriber interface {
	// Subscribe registers the topics later Fetch calls draw from. It must
	// be called before Fetch and at most once per topic.
	Subscribe(topics ...string) error

	// Fetch returns up to max messages, waiting at most window. It may
	// return an empty slice when the window elapses with nothing pending.
	Fetch(ctx context.Context, max int, window time.Duration) ([]Message, error)

	// Commit acknowledges messages previously returned by Fetch.
	// Uncommitted messages are redelivered by the backend.
	Commit(ctx context.Context, messages []Message) error

	// Close stops consumption and releases the connection.
	Close() error
}

// Queue combines both sides of the bus.
type Queue interface {
	Publisher
	Subscriber
}
