// Package config defines the gateway configuration model and YAML loader.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Store backend names.
const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

// Config is the root configuration for the OAuth gateway.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Logging    LoggingConfig     `yaml:"logging"`
	OAuth      OAuthConfig       `yaml:"oauth"`
	Store      StoreConfig       `yaml:"store"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Operations []OperationConfig `yaml:"operations"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OAuthConfig holds protocol-level settings for request authentication.
type OAuthConfig struct {
	// Realm is rendered in WWW-Authenticate challenge headers.
	Realm string `yaml:"realm"`

	// MaxAge limits how old a request timestamp may be. Zero disables the
	// age check.
	MaxAge Duration `yaml:"maxAge"`

	// MaxSkew is the tolerated clock difference between client and server.
	MaxSkew Duration `yaml:"maxSkew"`

	// NonceTTL is the retention window for nonce records. When zero it
	// defaults to MaxAge plus MaxSkew.
	NonceTTL Duration `yaml:"nonceTTL"`
}

// EffectiveNonceTTL returns the nonce retention window.
func (c *OAuthConfig) EffectiveNonceTTL() time.Duration {
	if c.NonceTTL > 0 {
		return c.NonceTTL.Duration()
	}
	if c.MaxAge > 0 {
		return c.MaxAge.Duration() + c.MaxSkew.Duration()
	}
	return 0
}

// StoreConfig selects and configures the credential directory backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`

	// CredentialsFile seeds the memory backend with consumers, tokens and
	// permissions. Ignored by the redis backend.
	CredentialsFile string `yaml:"credentialsFile"`

	// WatchCredentials reloads CredentialsFile on change.
	WatchCredentials bool `yaml:"watchCredentials"`

	Redis *RedisStoreConfig `yaml:"redis,omitempty"`
}

// RedisStoreConfig holds redis connection settings.
type RedisStoreConfig struct {
	URL            string          `yaml:"url"`
	KeyPrefix      string          `yaml:"keyPrefix"`
	PoolSize       int             `yaml:"poolSize"`
	ConnectTimeout Duration        `yaml:"connectTimeout"`
	ReadTimeout    Duration        `yaml:"readTimeout"`
	WriteTimeout   Duration        `yaml:"writeTimeout"`
	TLS            *RedisTLSConfig `yaml:"tls,omitempty"`
}

// RedisTLSConfig holds TLS settings for the redis connection.
type RedisTLSConfig struct {
	Enabled            bool `yaml:"enabled"`
	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`
}

// MetricsConfig holds metrics exposure settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OperationConfig declares a protected API operation served by the gateway.
type OperationConfig struct {
	ID           string `yaml:"id"`
	Method       string `yaml:"method"`
	Path         string `yaml:"path"`
	Title        string `yaml:"title"`
	RequiresAuth bool   `yaml:"requiresAuth"`
}

// SetDefaults applies default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(15 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.OAuth.MaxAge == 0 {
		c.OAuth.MaxAge = Duration(10 * time.Minute)
	}
	if c.OAuth.MaxSkew == 0 {
		c.OAuth.MaxSkew = Duration(1 * time.Minute)
	}

	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendMemory
	}
	if c.Store.Backend == StoreBackendRedis && c.Store.Redis == nil {
		c.Store.Redis = &RedisStoreConfig{}
	}
	if c.Store.Redis != nil && c.Store.Redis.KeyPrefix == "" {
		c.Store.Redis.KeyPrefix = "oauth1gw:"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendMemory, StoreBackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.Backend == StoreBackendRedis {
		if c.Store.Redis == nil || c.Store.Redis.URL == "" {
			return fmt.Errorf("redis store backend requires a redis URL")
		}
	}

	seen := make(map[string]bool, len(c.Operations))
	for i := range c.Operations {
		op := &c.Operations[i]
		if op.ID == "" {
			return fmt.Errorf("operation %d: id is required", i)
		}
		if seen[op.ID] {
			return fmt.Errorf("operation %q declared more than once", op.ID)
		}
		seen[op.ID] = true
		if op.Method == "" || op.Path == "" {
			return fmt.Errorf("operation %q: method and path are required", op.ID)
		}
		op.Method = strings.ToUpper(op.Method)
	}

	return nil
}
