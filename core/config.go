package core

import (
	"fmt"
	"strings"
)

const defaultMaxResponseBodyBytes int64 = 10 << 20

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
	// EventToken, when set, must match the Authorization header of every
	// registry notification.
	EventToken string `koanf:"event_token" mapstructure:"event_token"`
	// EventSecret enables HMAC-SHA256 verification of notification bodies
	// against EventSignatureHeader.
	EventSecret          string `koanf:"event_secret" mapstructure:"event_secret"`
	EventSignatureHeader string `koanf:"event_signature_header" mapstructure:"event_signature_header"`
}

type TransportConfig struct {
	MaxResponseBodyBytes int64 `koanf:"max_response_body_bytes" mapstructure:"max_response_body_bytes"`
	// ThrottleTargets backs off a target host after it answers 429.
	ThrottleTargets bool `koanf:"throttle_targets" mapstructure:"throttle_targets"`
}

type CacheConfig struct {
	TTLSeconds int `koanf:"ttl_seconds" mapstructure:"ttl_seconds"`
}

type RedisConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled" mapstructure:"enabled"`
}

// SecurityConfig holds the application key that seals webhook passwords.
// A blank key stores them as given.
type SecurityConfig struct {
	AppKey string `koanf:"app_key" mapstructure:"app_key"`
	KeyID  string `koanf:"key_id" mapstructure:"key_id"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Database    DatabaseConfig  `koanf:"database" mapstructure:"database"`
	HTTP        HTTPConfig      `koanf:"http" mapstructure:"http"`
	Transport   TransportConfig `koanf:"transport" mapstructure:"transport"`
	Cache       CacheConfig     `koanf:"cache" mapstructure:"cache"`
	Redis       RedisConfig     `koanf:"redis" mapstructure:"redis"`
	Metrics     MetricsConfig   `koanf:"metrics" mapstructure:"metrics"`
	Security    SecurityConfig  `koanf:"security" mapstructure:"security"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "webhooks",
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file:webhooks.db?cache=shared&_foreign_keys=on",
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Transport: TransportConfig{MaxResponseBodyBytes: defaultMaxResponseBodyBytes},
		Cache:     CacheConfig{TTLSeconds: 30},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.TrimSpace(c.Database.Driver) {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("core: database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Transport.MaxResponseBodyBytes < 0 {
		return fmt.Errorf("core: transport.max_response_body_bytes must not be negative")
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("core: cache.ttl_seconds must not be negative")
	}
	return nil
}
