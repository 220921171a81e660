// Package config handles reading and writing ~/.supportbot/config.yaml and
// applying environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Version        int         `yaml:"version"`
	APIBaseURL     string      `yaml:"api_base_url"`
	RequestTimeout int         `yaml:"request_timeout"` // seconds
	LogLevel       string      `yaml:"log_level"`
	Events         bool        `yaml:"events"`
	Serve          ServeConfig `yaml:"serve"`
}

// ServeConfig controls the reference backend started by `supportbot serve`.
type ServeConfig struct {
	Addr        string   `yaml:"addr"`
	Store       string   `yaml:"store"` // "memory" | "sqlite"
	DBPath      string   `yaml:"db_path"`
	CORSOrigins []string `yaml:"cors_origins"`
	SessionTTL  int      `yaml:"session_ttl"` // minutes, 0 keeps sessions forever
}

const (
	// DirName is the config directory under the user's home.
	DirName    = ".supportbot"
	configFile = "config.yaml"

	DefaultBaseURL = "http://localhost:8000/api"
)

// Environment variables that override the file.
const (
	EnvBaseURL       = "SUPPORTBOT_API_BASE_URL"
	EnvLegacyBaseURL = "REACT_APP_API_BASE_URL"
	EnvTimeout       = "SUPPORTBOT_REQUEST_TIMEOUT"
)

// DefaultDir returns ~/.supportbot, or .supportbot when the home directory
// is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, configFile)
}

// ReadConfig reads config.yaml from dir. Fields missing from the file keep
// their default values.
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// WriteConfig writes cfg to config.yaml in dir.
// Creates dir if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:        1,
		APIBaseURL:     DefaultBaseURL,
		RequestTimeout: 500,
		LogLevel:       "info",
		Events:         true,
		Serve: ServeConfig{
			Addr:       "127.0.0.1:8000",
			Store:      "memory",
			DBPath:     "supportbot.db",
			SessionTTL: 24 * 60,
		},
	}
}

// Load builds the effective config: defaults, then dir/config.yaml if it
// exists, then a .env file in the working directory, then the environment.
func Load(dir string) (*Config, error) {
	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. getenv is os.Getenv in
// production.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvLegacyBaseURL)); v != "" {
		c.APIBaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		c.APIBaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.RequestTimeout = n
	}
	return nil
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("api_base_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %d", c.RequestTimeout)
	}
	switch c.Serve.Store {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("serve.store must be memory or sqlite, got %q", c.Serve.Store)
	}
	return nil
}

// Timeout returns RequestTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// SessionTTL returns Serve.SessionTTL as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Serve.SessionTTL) * time.Minute
}
