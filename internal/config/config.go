// Package config loads service configuration from file and environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/fleetwatch/fleetwatch/internal/auth"
)

// Config holds all configuration for the fleetwatch service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RedisConfig holds the alert store connection settings.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RulesConfig points at the rule document.
type RulesConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig holds JWT settings and the configured login users.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	Users    []auth.User   `mapstructure:"users"`
}

// ReconcilerConfig holds the pass intervals.
type ReconcilerConfig struct {
	AutoCloseInterval  time.Duration `mapstructure:"auto_close_interval"`
	ReevaluateInterval time.Duration `mapstructure:"reevaluate_interval"`
	SnapshotInterval   time.Duration `mapstructure:"snapshot_interval"`
}

// RateLimitConfig holds the global and ingestion-specific limits.
type RateLimitConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	GlobalLimit  int           `mapstructure:"global_limit"`
	GlobalWindow time.Duration `mapstructure:"global_window"`
	CreateLimit  int           `mapstructure:"create_limit"`
	CreateWindow time.Duration `mapstructure:"create_window"`
}

// NATSConfig enables the optional lifecycle event publisher.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from an optional file, with environment
// variables (FLEETWATCH_ prefix) overriding file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("rules.path", "rules/alert-rules.yaml")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", "24h")

	v.SetDefault("reconciler.auto_close_interval", "2m")
	v.SetDefault("reconciler.reevaluate_interval", "5m")
	v.SetDefault("reconciler.snapshot_interval", "1h")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.global_limit", 100)
	v.SetDefault("ratelimit.global_window", "15m")
	v.SetDefault("ratelimit.create_limit", 30)
	v.SetDefault("ratelimit.create_window", "1m")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FLEETWATCH")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
