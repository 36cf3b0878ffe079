package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/pathcache/secret"
)

// Config is the pathcached configuration, read from pathcached.yaml and
// PATHCACHE_* environment variables.
type Config struct {
	Addr      string        `mapstructure:"addr"`
	Namespace string        `mapstructure:"namespace"`
	Store     StoreConfig   `mapstructure:"store"`
	Cache     CacheConfig   `mapstructure:"cache"`
	Auth      AuthConfig    `mapstructure:"auth"`
	Observe   ObserveConfig `mapstructure:"observe"`

	// Secrets configures the secret providers by name, e.g.
	// {"env": {"prefix": "PATHCACHE_"}, "file": {"dir": "/run/secrets"}}.
	Secrets map[string]map[string]any `mapstructure:"secrets"`
}

// StoreConfig selects and tunes the response store.
type StoreConfig struct {
	Backend    string      `mapstructure:"backend"` // memory|redis
	MaxEntries int         `mapstructure:"max_entries"`
	Redis      RedisConfig `mapstructure:"redis"`

	// Timeout bounds each store call.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxFailures consecutive store failures open the circuit for ResetTimeout.
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	MaxTTL     time.Duration `mapstructure:"max_ttl"`
}

// AuthConfig configures how CurrentUser identities are established.
type AuthConfig struct {
	JWTSecret string       `mapstructure:"jwt_secret"`
	Issuer    string       `mapstructure:"issuer"`
	APIKeys   []APIKeySpec `mapstructure:"api_keys"`
	Anonymous bool         `mapstructure:"anonymous"`
}

type APIKeySpec struct {
	Principal string   `mapstructure:"principal"`
	Key       string   `mapstructure:"key"`
	Roles     []string `mapstructure:"roles"`
}

type ObserveConfig struct {
	LogLevel  string  `mapstructure:"log_level"`
	Tracing   string  `mapstructure:"tracing"` // otlp|jaeger|stdout|none
	SamplePct float64 `mapstructure:"sample_pct"`
	Metrics   string  `mapstructure:"metrics"` // otlp|prometheus|stdout|none
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("namespace", "")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.max_entries", 10000)
	v.SetDefault("store.timeout", "250ms")
	v.SetDefault("store.max_failures", 5)
	v.SetDefault("store.reset_timeout", "30s")
	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.max_ttl", "1h")
	v.SetDefault("auth.anonymous", true)
	v.SetDefault("observe.log_level", "info")
	v.SetDefault("observe.tracing", "none")
	v.SetDefault("observe.sample_pct", 1.0)
	v.SetDefault("observe.metrics", "prometheus")
}

// loadConfig reads configFile, or pathcached.yaml from the working directory
// when configFile is empty. A missing default file is not an error.
func loadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PATHCACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pathcached")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Cache.MaxTTL > 0 && c.Cache.DefaultTTL > c.Cache.MaxTTL {
		return fmt.Errorf("cache.default_ttl %s exceeds cache.max_ttl %s", c.Cache.DefaultTTL, c.Cache.MaxTTL)
	}
	for i, k := range c.Auth.APIKeys {
		if k.Principal == "" || k.Key == "" {
			return fmt.Errorf("auth.api_keys[%d]: principal and key are required", i)
		}
	}
	return nil
}

// newSecretResolver builds the resolver for secret-bearing fields. With no
// secrets section the built-in env and file providers are used unconfigured.
func newSecretResolver(cfg *Config) (*secret.Resolver, error) {
	providers := cfg.Secrets
	if len(providers) == 0 {
		providers = map[string]map[string]any{"env": nil, "file": nil}
	}
	return secret.NewResolverFromConfig(secret.DefaultRegistry, true, providers)
}

// resolveSecrets replaces the Redis password, the JWT secret and every API
// key with their resolved values.
func resolveSecrets(ctx context.Context, cfg *Config, r *secret.Resolver) error {
	type field struct {
		name string
		ptr  *string
	}
	fields := []field{
		{"store.redis.password", &cfg.Store.Redis.Password},
		{"auth.jwt_secret", &cfg.Auth.JWTSecret},
	}
	for i := range cfg.Auth.APIKeys {
		fields = append(fields, field{fmt.Sprintf("auth.api_keys[%d].key", i), &cfg.Auth.APIKeys[i].Key})
	}

	for _, f := range fields {
		resolved, err := r.ResolveValue(ctx, *f.ptr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f.name, err)
		}
		*f.ptr = resolved
	}
	return nil
}
