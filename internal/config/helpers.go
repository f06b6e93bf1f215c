package config

import (
	"os"
)

// EnsureDirectories ensures all required directories exist. This is the only
// setup step that is fatal to the whole run when it fails.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.Input,
		c.Paths.Output,
		c.Paths.Quarantine,
		c.Paths.Reference,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}
