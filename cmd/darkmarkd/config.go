package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config is the darkmarkd daemon configuration.
type Config struct {
	Listen string `yaml:"listen"`
	DBPath string `yaml:"db_path"`
	// APIKeyHash is a bcrypt hash of the required x-api-key header.
	// Empty disables authentication.
	APIKeyHash string `yaml:"api_key_hash"`

	Model     ModelConfig     `yaml:"model"`
	Worker    WorkerConfig    `yaml:"worker"`
	Retention RetentionConfig `yaml:"retention"`
}

// ModelConfig selects the classifier. Without an API key the daemon falls
// back to the deterministic rule classifier.
type ModelConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Name    string `yaml:"name"`
}

// WorkerConfig tunes the enrichment queue consumer.
type WorkerConfig struct {
	Visibility        time.Duration `yaml:"visibility"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxAttempts       int           `yaml:"max_attempts"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// RetentionConfig controls observability table cleanup.
type RetentionConfig struct {
	EventLogsDays  int           `yaml:"event_logs_days"`
	HeartbeatsDays int           `yaml:"heartbeats_days"`
	Every          time.Duration `yaml:"every"`
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8090"
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(xdg.DataHome, "darkmark", "darkmark.db")
	}
	if c.Worker.Visibility <= 0 {
		c.Worker.Visibility = 5 * time.Minute
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = time.Second
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 3
	}
	if c.Worker.HeartbeatInterval <= 0 {
		c.Worker.HeartbeatInterval = 15 * time.Second
	}
	if c.Retention.EventLogsDays <= 0 {
		c.Retention.EventLogsDays = 30
	}
	if c.Retention.HeartbeatsDays <= 0 {
		c.Retention.HeartbeatsDays = 7
	}
	if c.Retention.Every <= 0 {
		c.Retention.Every = 24 * time.Hour
	}
}

// loadConfig reads the YAML config at path. An empty path yields defaults.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}
