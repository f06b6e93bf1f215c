package queue

// Test-only constructors so tests can build specific backends without the
// factory.

func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	return newKafkaQueue(cfg)
}

func NewNATSQueue(url string) (*NATSQueue, error) {
	return newNATSQueue(url)
}

func NewRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	return newRedisQueue(cfg)
}
