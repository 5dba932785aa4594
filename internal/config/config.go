package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Socket holds reconnection tuning for the persistent connection.
// Defaults match the backend's expectations; deployments may override.
type Socket struct {
	BaseDelayMS int `toml:"base_delay_ms"`
	MaxAttempts int `toml:"max_attempts"`
}

// BaseDelay returns the backoff base delay as a duration.
func (s Socket) BaseDelay() time.Duration {
	return time.Duration(s.BaseDelayMS) * time.Millisecond
}

// Config represents the global ~/.agapp/config.toml.
type Config struct {
	APIBaseURL     string `toml:"api_base_url"`
	DefaultSession string `toml:"default_session"`
	Socket         Socket `toml:"socket"`
}

// Default returns a config with production defaults applied.
func Default() *Config {
	return &Config{
		APIBaseURL: "https://api.agapp.com.br",
		Socket: Socket{
			BaseDelayMS: 2000,
			MaxAttempts: 5,
		},
	}
}

// Load reads config from the given path, applying defaults for any
// unset socket tuning. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.Socket.BaseDelayMS <= 0 {
		cfg.Socket.BaseDelayMS = 2000
	}
	if cfg.Socket.MaxAttempts <= 0 {
		cfg.Socket.MaxAttempts = 5
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
