package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PathsConfig holds the partition and reference data roots
type PathsConfig struct {
	Input      string `mapstructure:"input"`      // Incoming partition root (date=.../hour=...)
	Output     string `mapstructure:"output"`     // Accepted-record partition root
	Quarantine string `mapstructure:"quarantine"` // Rejected-record partition root
	Reference  string `mapstructure:"reference"`  // Reference store root (customers/, products/)
}

// PipelineConfig holds batch processing behaviour
type PipelineConfig struct {
	// ErasureLagDays is how many days erasure enforcement trails ingestion.
	// Requests recorded on day D are applied while processing day D+lag.
	ErasureLagDays int `mapstructure:"erasure_lag_days"`
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Type     string `mapstructure:"type"`     // Queue type: kafka (default), nats, redis, memory
	URL      string `mapstructure:"url"`      // Queue server URL (nats/redis)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	KafkaGroupID string   `mapstructure:"kafka_group_id"` // Kafka consumer group ID

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisStream   string `mapstructure:"redis_stream"`   // Redis stream prefix
	RedisGroup    string `mapstructure:"redis_group"`    // Redis consumer group
	RedisConsumer string `mapstructure:"redis_consumer"` // Redis consumer name (default: hostname)

	// Consumer batching
	BatchSize   int           `mapstructure:"batch_size"`   // Messages per processing batch
	BatchWindow time.Duration `mapstructure:"batch_window"` // Max wait before a partial batch is flushed
}

// MetricsConfig represents the observability sink configuration
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`     // Expose prometheus metrics
	ListenAddr string `mapstructure:"listen_addr"` // HTTP listen address for /metrics and /healthz
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates path configuration
func (c *PathsConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}

	if c.Output == "" {
		return fmt.Errorf("output is required")
	}

	if c.Quarantine == "" {
		return fmt.Errorf("quarantine is required")
	}

	if c.Reference == "" {
		return fmt.Errorf("reference is required")
	}

	return nil
}

// Validate validates pipeline configuration
func (c *PipelineConfig) Validate() error {
	if c.ErasureLagDays < 0 {
		return fmt.Errorf("erasure_lag_days cannot be negative")
	}

	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	validTypes := map[string]bool{
		"":       true, // Defaults to kafka
		"kafka":  true,
		"nats":   true,
		"redis":  true,
		"memory": true,
	}

	if !validTypes[c.Type] {
		return fmt.Errorf("queue.type must be one of: kafka, nats, redis, memory")
	}

	if c.BatchSize < 0 {
		return fmt.Errorf("queue.batch_size cannot be negative")
	}

	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
