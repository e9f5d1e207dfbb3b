package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway daemon's configuration.
type Config struct {
	Addr            string `yaml:"addr"`
	LogLevel        string `yaml:"log_level"`
	LoginTTLMinutes int    `yaml:"login_ttl_minutes"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Addr:            ":8080",
		LogLevel:        "info",
		LoginTTLMinutes: 10,
	}
}

// LoginTTL is how long a pending login survives before eviction.
func (c *Config) LoginTTL() time.Duration {
	return time.Duration(c.LoginTTLMinutes) * time.Minute
}

// Load reads the gateway config from path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LoginTTLMinutes <= 0 {
		cfg.LoginTTLMinutes = 10
	}
	return cfg, nil
}

// Credentials are the Telegram application credentials, sourced from the
// environment. Get them from https://my.telegram.org.
type Credentials struct {
	APIID   int
	APIHash string
}

// LoadCredentials reads TELEGRAM_API_ID and TELEGRAM_API_HASH. The gateway
// still starts without them; every operation then reports the missing
// configuration.
func LoadCredentials() (Credentials, error) {
	id := os.Getenv("TELEGRAM_API_ID")
	hash := os.Getenv("TELEGRAM_API_HASH")
	if id == "" || hash == "" {
		return Credentials{}, errors.New("TELEGRAM_API_ID and TELEGRAM_API_HASH must be set")
	}
	apiID, err := strconv.Atoi(id)
	if err != nil {
		return Credentials{}, fmt.Errorf("TELEGRAM_API_ID must be numeric: %w", err)
	}
	return Credentials{APIID: apiID, APIHash: hash}, nil
}

// Dir is where the wizard keeps its saved settings.
func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "groupgate")
}

// ClientConfig is the wizard's saved state. A saved backend URL skips the
// setup step.
type ClientConfig struct {
	BackendURL string `yaml:"backend_url"`
}

// LoadClient reads the wizard config from path. A missing file yields an
// empty config.
func LoadClient(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ClientConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read client config: %w", err)
	}
	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse client config: %w", err)
	}
	return &cfg, nil
}

// SaveClient writes the wizard config to path, creating the directory if
// needed.
func SaveClient(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal client config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write client config: %w", err)
	}
	return nil
}
