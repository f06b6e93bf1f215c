package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue implements Queue with in-process channels. It backs tests and
// local development where no broker is running. Commit is a no-op: an
// in-process queue has no redelivery to arrange.
type MemoryQueue struct {
	channels   map[string]chan []byte
	subscribed map[string]struct{}
	incoming   chan Message
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
}

// NewMemoryQueue creates an in-memory queue. Exported so tests outside this
// package can construct one without going through the factory.
func NewMemoryQueue() *MemoryQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		channels:   make(map[string]chan []byte),
		subscribed: make(map[string]struct{}),
		incoming:   make(chan Message),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (q *MemoryQueue) getOrCreateChannel(topic string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch, exists := q.channels[topic]; exists {
		return ch
	}

	ch := make(chan []byte, 10000)
	q.channels[topic] = ch
	return ch
}

// Publish sends a message onto the topic's channel without blocking.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, value []byte) error {
	ch := q.getOrCreateChannel(topic)

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	select {
	case ch <- valueCopy:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("channel full for topic: %s", topic)
	}
}

// PublishBatch publishes each message in turn.
func (q *MemoryQueue) PublishBatch(ctx context.Context, messages []Message) (int, error) {
	successCount := 0
	for _, msg := range messages {
		if err := q.Publish(ctx, msg.Topic, msg.Value); err != nil {
			continue
		}
		successCount++
	}
	return successCount, nil
}

// Subscribe starts forwarding each topic's channel into the shared fetch
// channel.
func (q *MemoryQueue) Subscribe(topics ...string) error {
	q.mu.Lock()
	for _, topic := range topics {
		if _, exists := q.subscribed[topic]; exists {
			q.mu.Unlock()
			return fmt.Errorf("already subscribed to topic: %s", topic)
		}
		q.subscribed[topic] = struct{}{}
	}
	q.mu.Unlock()

	for _, topic := range topics {
		ch := q.getOrCreateChannel(topic)
		q.wg.Add(1)
		go func(topic string, ch chan []byte) {
			defer q.wg.Done()
			for {
				select {
				case <-q.ctx.Done():
					return
				case data, ok := <-ch:
					if !ok {
						return
					}
					select {
					case q.incoming <- Message{Topic: topic, Value: data}:
					case <-q.ctx.Done():
						return
					}
				}
			}
		}(topic, ch)
	}
	return nil
}

// Fetch collects up to max messages, waiting at most window.
func (q *MemoryQueue) Fetch(ctx context.Context, max int, window time.Duration) ([]Message, error) {
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

// Commit is a no-op for the in-memory queue.
func (q *MemoryQueue) Commit(ctx context.Context, messages []Message) error {
	return nil
}

// Close stops forwarding and closes all channels.
func (q *MemoryQueue) Close() error {
	q.cancel()
	q.wg.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()

	for topic, ch := range q.channels {
		close(ch)
		delete(q.channels, topic)
	}
	return nil
}

// PendingCount returns the number of undelivered messages on a topic.
func (q *MemoryQueue) PendingCount(topic string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if ch, exists := q.channels[topic]; exists {
		return len(ch)
	}
	return 0
}
