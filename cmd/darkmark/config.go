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

// Config is the scanner CLI configuration, loadable from YAML. Flags
// override file values.
type Config struct {
	BackendURL string        `yaml:"backend_url"`
	APIKey     string        `yaml:"api_key"`
	Translate  bool          `yaml:"translate"`
	Fetch      FetchConfig   `yaml:"fetch"`
	PollEvery  time.Duration `yaml:"poll_every"`
}

// FetchConfig tunes page loading.
type FetchConfig struct {
	UserAgent      string        `yaml:"user_agent"`
	Timeout        time.Duration `yaml:"timeout"`
	ForceBrowser   bool          `yaml:"force_browser"`
	DisableBrowser bool          `yaml:"disable_browser"`
	BrowserBin     string        `yaml:"browser_bin"`
}

func (c *Config) applyDefaults() {
	if c.PollEvery <= 0 {
		c.PollEvery = 2 * time.Second
	}
}

// defaultConfigPath is the XDG location consulted when -config is not given.
func defaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "darkmark", "config.yaml")
}

// loadConfig reads the YAML config at path. An absent default file is not an
// error; an absent explicit path is.
func loadConfig(path string, explicit bool) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg.applyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}
