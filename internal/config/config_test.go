package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "default config should be valid",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "missing input path",
			config: &Config{
				Paths: PathsConfig{
					Input:      "",
					Output:     "./data/output",
					Quarantine: "./data/quarantine",
					Reference:  "./data/reference",
				},
				Pipeline: DefaultConfig().Pipeline,
				Queue:    DefaultConfig().Queue,
				Logging:  DefaultConfig().Logging,
			},
			wantErr: true,
		},
		{
			name: "negative erasure lag",
			config: &Config{
				Paths: DefaultConfig().Paths,
				Pipeline: PipelineConfig{
					ErasureLagDays: -1,
				},
				Queue:   DefaultConfig().Queue,
				Logging: DefaultConfig().Logging,
			},
			wantErr: true,
		},
		{
			name: "zero erasure lag is allowed",
			config: &Config{
				Paths: DefaultConfig().Paths,
				Pipeline: PipelineConfig{
					ErasureLagDays: 0,
				},
				Queue:   DefaultConfig().Queue,
				Logging: DefaultConfig().Logging,
			},
			wantErr: false,
		},
		{
			name: "unknown queue type",
			config: &Config{
				Paths:    DefaultConfig().Paths,
				Pipeline: DefaultConfig().Pipeline,
				Queue: QueueConfig{
					Type: "rabbitmq",
				},
				Logging: DefaultConfig().Logging,
			},
			wantErr: true,
		},
		{
			name: "empty queue type defaults to kafka",
			config: &Config{
				Paths:    DefaultConfig().Paths,
				Pipeline: DefaultConfig().Pipeline,
				Queue: QueueConfig{
					Type: "",
				},
				Logging: DefaultConfig().Logging,
			},
			wantErr: false,
		},
		{
			name: "negative batch size",
			config: &Config{
				Paths:    DefaultConfig().Paths,
				Pipeline: DefaultConfig().Pipeline,
				Queue: QueueConfig{
					Type:      "memory",
					BatchSize: -5,
				},
				Logging: DefaultConfig().Logging,
			},
			wantErr: true,
		},
		{
			name: "invalid logging level",
			config: &Config{
				Paths:    DefaultConfig().Paths,
				Pipeline: DefaultConfig().Pipeline,
				Queue:    DefaultConfig().Queue,
				Logging: LoggingConfig{
					Level:  "invalid",
					Format: "json",
				},
			},
			wantErr: true,
		},
		{
			name: "invalid logging format",
			config: &Config{
				Paths:    DefaultConfig().Paths,
				Pipeline: DefaultConfig().Pipeline,
				Queue:    DefaultConfig().Queue,
				Logging: LoggingConfig{
					Level:  "info",
					Format: "xml",
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.ErasureLagDays != 1 {
		t.Errorf("expected erasure lag 1 day, got %d", cfg.Pipeline.ErasureLagDays)
	}

	if cfg.Queue.Type != "kafka" {
		t.Errorf("expected queue type kafka, got %s", cfg.Queue.Type)
	}

	if cfg.Queue.BatchSize != 100 {
		t.Errorf("expected batch size 100, got %d", cfg.Queue.BatchSize)
	}

	if cfg.Queue.BatchWindow != 5*time.Second {
		t.Errorf("expected batch window 5s, got %v", cfg.Queue.BatchWindow)
	}

	if cfg.Metrics.ListenAddr != ":8002" {
		t.Errorf("expected metrics addr :8002, got %s", cfg.Metrics.ListenAddr)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := []byte(`
paths:
  input: /srv/pipeline/input
  output: /srv/pipeline/output
pipeline:
  erasure_lag_days: 2
queue:
  type: memory
  batch_size: 25
logging:
  level: debug
  format: console
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Paths.Input != "/srv/pipeline/input" {
		t.Errorf("expected input override, got %s", cfg.Paths.Input)
	}

	// Keys absent from the file keep their defaults.
	if cfg.Paths.Quarantine != "./data/quarantine" {
		t.Errorf("expected default quarantine path, got %s", cfg.Paths.Quarantine)
	}

	if cfg.Pipeline.ErasureLagDays != 2 {
		t.Errorf("expected erasure lag 2, got %d", cfg.Pipeline.ErasureLagDays)
	}

	if cfg.Queue.Type != "memory" || cfg.Queue.BatchSize != 25 {
		t.Errorf("unexpected queue config: %+v", cfg.Queue)
	}
}

func TestLoadInvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := []byte(`
queue:
  type: rabbitmq
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected validation error for unknown queue type")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg == nil {
		t.Fatal("LoadOrDefault() returned nil")
	}

	if cfg.Queue.Type != "kafka" {
		t.Errorf("expected default queue type kafka, got %s", cfg.Queue.Type)
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.IsProduction() {
		t.Error("default config should be production mode")
	}

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "console"

	if !cfg.IsDevelopment() {
		t.Error("config with debug/console should be development mode")
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()

	cfg := DefaultConfig()
	cfg.Paths = PathsConfig{
		Input:      filepath.Join(root, "in"),
		Output:     filepath.Join(root, "out"),
		Quarantine: filepath.Join(root, "quar"),
		Reference:  filepath.Join(root, "ref"),
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories() failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.Input, cfg.Paths.Output, cfg.Paths.Quarantine, cfg.Paths.Reference} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s, err=%v", dir, err)
		}
	}
}
