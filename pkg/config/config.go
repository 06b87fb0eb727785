// Package config loads the arylicctl configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// DefaultDevURL is where the bridge listens during local development.
const DefaultDevURL = "ws://localhost:8080/ws"

// Throttle holds per-surface coalescing windows.
type Throttle struct {
	Playback time.Duration `yaml:"playback" json:"playback"`
	Settings time.Duration `yaml:"settings" json:"settings"`
}

// NATS configures the notification bridge.
type NATS struct {
	URL           string `yaml:"url" json:"url"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
}

// Config holds the arylicctl configuration.
type Config struct {
	Environment    string            `yaml:"environment" json:"environment"`
	URLs           map[string]string `yaml:"urls" json:"urls"`
	ActiveEndpoint string            `yaml:"active_endpoint" json:"active_endpoint"`
	RequestTimeout time.Duration     `yaml:"request_timeout" json:"request_timeout"`
	Throttle       Throttle          `yaml:"throttle" json:"throttle"`
	NATS           NATS              `yaml:"nats" json:"nats"`
	LogLevel       string            `yaml:"log_level" json:"log_level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Environment:    EnvDev,
		URLs:           map[string]string{EnvDev: DefaultDevURL},
		RequestTimeout: 10 * time.Second,
		Throttle: Throttle{
			Playback: 15 * time.Millisecond,
			Settings: 200 * time.Millisecond,
		},
		NATS: NATS{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "arylic",
		},
		LogLevel: "info",
	}
}

// DefaultPath returns the default config file path: ~/.arylicctl/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".arylicctl", "config.yaml")
	}
	return filepath.Join(home, ".arylicctl", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns Default() with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the selected environment has a URL and timings are sane.
func (c *Config) Validate() error {
	if _, err := c.URL(); err != nil {
		return err
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	if c.Throttle.Playback < 0 || c.Throttle.Settings < 0 {
		return fmt.Errorf("throttle windows must not be negative")
	}
	return nil
}

// URL returns the WebSocket URL for the selected environment.
func (c *Config) URL() (string, error) {
	env := c.Environment
	if env == "" {
		env = EnvDev
	}
	u, ok := c.URLs[env]
	if !ok || u == "" {
		if env == EnvDev {
			return DefaultDevURL, nil
		}
		return "", fmt.Errorf("no url configured for environment %q", env)
	}
	return u, nil
}
