// Package config handles loading and validating the jikan-catalog
// configuration from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/jikan-catalog/pkg/client"
	"github.com/Sternrassler/jikan-catalog/pkg/logging"
)

// Config is the top-level application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Redis   RedisConfig   `yaml:"redis"`
	Cache   CacheConfig   `yaml:"cache"`
	Server  ServerConfig  `yaml:"server"`
	Listing ListingConfig `yaml:"listing"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig defines the upstream Jikan API and retry settings.
type APIConfig struct {
	BaseURL          string        `yaml:"base_url"`
	UserAgent        string        `yaml:"user_agent"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxRetries       *int          `yaml:"max_retries"`
	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	TransientDelay   time.Duration `yaml:"transient_delay"`
	Jitter           *float64      `yaml:"jitter"`
	RateLimit        RateLimit     `yaml:"rate_limit"`
}

// RateLimit defines local request pacing.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// RedisConfig defines the optional Redis connection. An empty Addr
// disables Redis: throttle state stays in process and the proxy does not cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Options returns go-redis client options.
func (r *RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
	}
}

// CacheConfig defines the proxy response cache.
type CacheConfig struct {
	Enabled *bool         `yaml:"enabled"` // default: true when redis is configured
	TTL     time.Duration `yaml:"ttl"`
}

// ServerConfig defines the proxy HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ListingConfig defines accumulator and export behaviour.
type ListingConfig struct {
	Debounce          time.Duration `yaml:"debounce"`
	ExportConcurrency int           `yaml:"export_concurrency"`
	ExportMaxPages    int           `yaml:"export_max_pages"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML config content.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	return finish(cfg)
}

// Default returns the configuration with every default applied.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyAPIDefaults(&cfg.API)
	applyCacheDefaults(&cfg.Cache, &cfg.Redis)
	applyServerDefaults(&cfg.Server)
	applyListingDefaults(&cfg.Listing)
	applyLoggingDefaults(&cfg.Logging)
}

func applyAPIDefaults(a *APIConfig) {
	def := client.DefaultConfig(nil, "")

	if a.BaseURL == "" {
		a.BaseURL = def.BaseURL
	}
	if a.UserAgent == "" {
		a.UserAgent = "jikan-catalog/0.1.0"
	}
	if a.Timeout == 0 {
		a.Timeout = def.Timeout
	}
	if a.MaxRetries == nil {
		a.MaxRetries = &def.MaxRetries
	}
	if a.RateLimitBackoff == 0 {
		a.RateLimitBackoff = def.RateLimitBackoff
	}
	if a.MaxBackoff == 0 {
		a.MaxBackoff = def.MaxBackoff
	}
	if a.TransientDelay == 0 {
		a.TransientDelay = def.TransientDelay
	}
	if a.Jitter == nil {
		a.Jitter = &def.JitterFraction
	}
	if a.RateLimit.PerSecond == 0 {
		a.RateLimit.PerSecond = def.RequestsPerSecond
	}
	if a.RateLimit.Burst == 0 {
		a.RateLimit.Burst = def.Burst
	}
}

func applyCacheDefaults(c *CacheConfig, r *RedisConfig) {
	if c.Enabled == nil {
		enabled := r.Enabled()
		c.Enabled = &enabled
	}
	if c.TTL == 0 {
		c.TTL = 10 * time.Minute
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 2 * time.Minute
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = 90 * time.Second
	}
}

func applyListingDefaults(l *ListingConfig) {
	if l.Debounce == 0 {
		l.Debounce = 500 * time.Millisecond
	}
	if l.ExportConcurrency == 0 {
		l.ExportConcurrency = 3
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

// Validate checks a fully defaulted configuration.
func Validate(cfg *Config) error {
	var errs []error

	if u, err := url.Parse(cfg.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", cfg.API.BaseURL))
	}
	if cfg.API.MaxRetries != nil && *cfg.API.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("api.max_retries must be >= 0"))
	}
	if cfg.API.Jitter != nil && (*cfg.API.Jitter < 0 || *cfg.API.Jitter >= 1) {
		errs = append(errs, fmt.Errorf("api.jitter must be in [0,1)"))
	}
	if cfg.API.MaxBackoff < cfg.API.RateLimitBackoff {
		errs = append(errs, fmt.Errorf("api.max_backoff must be >= api.rate_limit_backoff"))
	}
	if cfg.API.RateLimit.PerSecond < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit.per_second must be > 0"))
	}
	if cfg.API.RateLimit.Burst < 0 {
		errs = append(errs, fmt.Errorf("api.rate_limit.burst must be >= 1"))
	}
	if cfg.Cache.Enabled != nil && *cfg.Cache.Enabled && !cfg.Redis.Enabled() {
		errs = append(errs, fmt.Errorf("cache.enabled requires redis.addr"))
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative"))
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535"))
	}
	if cfg.Listing.Debounce < 0 {
		errs = append(errs, fmt.Errorf("listing.debounce must not be negative"))
	}
	if cfg.Listing.ExportConcurrency < 0 {
		errs = append(errs, fmt.Errorf("listing.export_concurrency must be >= 1"))
	}
	if cfg.Listing.ExportMaxPages < 0 {
		errs = append(errs, fmt.Errorf("listing.export_max_pages must not be negative"))
	}
	if !logging.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid (must be debug, info, warn, or error)", cfg.Logging.Level))
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q is invalid (must be text or json)", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}

// CacheEnabled reports whether the proxy should cache responses.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled != nil && *c.Cache.Enabled
}

// ClientConfig maps the API section onto a fetch client configuration.
// redisClient may be nil.
func (c *Config) ClientConfig(redisClient *redis.Client) client.Config {
	cfg := client.DefaultConfig(redisClient, c.API.UserAgent)
	cfg.BaseURL = c.API.BaseURL
	cfg.Timeout = c.API.Timeout
	if c.API.MaxRetries != nil {
		cfg.MaxRetries = *c.API.MaxRetries
	}
	cfg.RateLimitBackoff = c.API.RateLimitBackoff
	cfg.MaxBackoff = c.API.MaxBackoff
	cfg.TransientDelay = c.API.TransientDelay
	if c.API.Jitter != nil {
		cfg.JitterFraction = *c.API.Jitter
	}
	cfg.RequestsPerSecond = c.API.RateLimit.PerSecond
	cfg.Burst = c.API.RateLimit.Burst
	return cfg
}

// LoggingSetup maps the logging section onto a logger configuration.
func (c *Config) LoggingSetup() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.LogLevel(c.Logging.Level)
	lc.Pretty = c.Logging.Format == "text"
	return lc
}
