package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")             // Current directory
		v.AddConfigPath("./configs")     // Project configs directory
		v.AddConfigPath("/etc/pipeline") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides
	v.SetEnvPrefix("PIPELINE")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Path defaults
	v.SetDefault("paths.input", "./data/input")
	v.SetDefault("paths.output", "./data/output")
	v.SetDefault("paths.quarantine", "./data/quarantine")
	v.SetDefault("paths.reference", "./data/reference")

	// Pipeline defaults
	v.SetDefault("pipeline.erasure_lag_days", 1)

	// Queue defaults
	v.SetDefault("queue.type", "kafka")
	v.SetDefault("queue.kafka_brokers", []string{"localhost:9092"})
	v.SetDefault("queue.kafka_group_id", "data-pipeline-etl")
	v.SetDefault("queue.batch_size", 100)
	v.SetDefault("queue.batch_window", "5s")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":8002")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Input:      "./data/input",
			Output:     "./data/output",
			Quarantine: "./data/quarantine",
			Reference:  "./data/reference",
		},
		Pipeline: PipelineConfig{
			ErasureLagDays: 1,
		},
		Queue: QueueConfig{
			Type:         "kafka",
			KafkaBrokers: []string{"localhost:9092"},
			KafkaGroupID: "data-pipeline-etl",
			BatchSize:    100,
			BatchWindow:  5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":8002",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
