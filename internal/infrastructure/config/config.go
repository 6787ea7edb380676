package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Sandbox   SandboxConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// AllowedOrigins lists browser origins admitted by CORS; "*" admits any.
	AllowedOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// SandboxConfig holds sandbox realm configuration.
type SandboxConfig struct {
	// WhitelistFile replaces the default whitelist when set (.yaml, .yml, .toml or .json).
	WhitelistFile string        `envconfig:"SANDBOX_WHITELIST_FILE"`
	PoolSize      int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	MaxSessions   int           `envconfig:"SANDBOX_MAX_SESSIONS" default:"64"`
	SessionTTL    time.Duration `envconfig:"SANDBOX_SESSION_TTL" default:"30m"`
	Timeout       time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	TimerBudget   int           `envconfig:"SANDBOX_TIMER_BUDGET" default:"1000"`
	Console       bool          `envconfig:"SANDBOX_CONSOLE" default:"true"`
	Location      string        `envconfig:"SANDBOX_LOCATION" default:"about:blank"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Sandbox: SandboxConfig{
			PoolSize:    4,
			MaxSessions: 64,
			SessionTTL:  30 * time.Minute,
			Timeout:     5 * time.Second,
			TimerBudget: 1000,
			Console:     true,
			Location:    "about:blank",
		},
	}
}
