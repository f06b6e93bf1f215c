package queue

import (
	"context"
	"testing"
	"time"
)

func TestKafkaQueue_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaQueue(KafkaConfig{})
	if err == nil {
		t.Fatal("Expected error when brokers are empty")
	}
}

func TestKafkaQueue_AppliesDefaults(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{
		Brokers: []string{"localhost:9092"},
	})
	if err != nil {
		t.Fatalf("Failed to create kafka queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	if q.config.GroupID != "data-pipeline-etl" {
		t.Errorf("Expected default group, got %s", q.config.GroupID)
	}
	if q.config.BatchSize != 100 {
		t.Errorf("Expected default batch size 100, got %d", q.config.BatchSize)
	}
	if q.config.CommitRetries != 3 {
		t.Errorf("Expected default commit retries 3, got %d", q.config.CommitRetries)
	}
	if q.config.RetryBackoff != 100*time.Millisecond {
		t.Errorf("Expected default retry backoff 100ms, got %v", q.config.RetryBackoff)
	}
}

func TestKafkaQueue_WriterReuse(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{
		Brokers: []string{"localhost:9092"},
	})
	if err != nil {
		t.Fatalf("Failed to create kafka queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	w1 := q.getOrCreateWriter("customers")
	w2 := q.getOrCreateWriter("customers")
	if w1 != w2 {
		t.Error("Expected the same writer for repeated topic")
	}

	w3 := q.getOrCreateWriter("products")
	if w1 == w3 {
		t.Error("Expected distinct writers per topic")
	}
}

func TestKafkaQueue_FetchTimesOutWithoutMessages(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{
		Brokers: []string{"localhost:9092"},
	})
	if err != nil {
		t.Fatalf("Failed to create kafka queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	batch, err := q.Fetch(context.Background(), 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("Expected empty batch, got %d messages", len(batch))
	}
}

func TestKafkaQueue_CommitRejectsForeignCursor(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{
		Brokers: []string{"localhost:9092"},
	})
	if err != nil {
		t.Fatalf("Failed to create kafka queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	err = q.Commit(context.Background(), []Message{NewMessage("customers", nil)})
	if err == nil {
		t.Fatal("Expected error committing a message without a kafka cursor")
	}
}

func TestKafkaQueue_PublishBatchEmpty(t *testing.T) {
	q, err := NewKafkaQueue(KafkaConfig{
		Brokers: []string{"localhost:9092"},
	})
	if err != nil {
		t.Fatalf("Failed to create kafka queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	n, err := q.PublishBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("PublishBatch failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 published, got %d", n)
	}
}
