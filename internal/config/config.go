// Package config provides configuration management for the chat relay server.
// It handles loading and parsing YAML configuration files, applying environment
// overrides, and provides structured access to application settings including
// server port, upstream provider credentials, cache-window tiers, and pricing.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the HTTP listen port for the relay server.
	Port int `yaml:"port" json:"port"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug" json:"debug"`

	// UseZapLogger enables the optional high-performance Zap logger
	// alongside the default logrus logger.
	UseZapLogger bool `yaml:"use-zap-logger,omitempty" json:"use-zap-logger,omitempty"`

	// Logging configures log file output and rotation.
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`

	// Anthropic configures the upstream provider connection.
	Anthropic AnthropicConfig `yaml:"anthropic" json:"anthropic"`

	// Pricing holds the token pricing constants used for savings estimates.
	Pricing PricingConfig `yaml:"pricing,omitempty" json:"pricing,omitempty"`

	// Resilience configures the optional retry decorator around the upstream invoker.
	Resilience ResilienceConfig `yaml:"resilience,omitempty" json:"resilience,omitempty"`

	// UsageDB configures optional Postgres persistence of per-request usage rows.
	UsageDB UsageDBConfig `yaml:"usage-db,omitempty" json:"usage-db,omitempty"`

	// Audit configures the in-memory audit log.
	Audit AuditConfig `yaml:"audit,omitempty" json:"audit,omitempty"`

	// Management configures access to the management endpoints.
	Management ManagementConfig `yaml:"management,omitempty" json:"management,omitempty"`

	// Performance configures HTTP connection pooling for upstream calls.
	Performance PerformanceConfig `yaml:"performance,omitempty" json:"performance,omitempty"`
}

// AnthropicConfig holds upstream provider settings.
type AnthropicConfig struct {
	// APIKey authenticates against the provider. Usually populated from the
	// ANTHROPIC_API_KEY environment variable rather than the YAML file.
	APIKey string `yaml:"api-key,omitempty" json:"api-key,omitempty"`

	// BaseURL is the provider API root. Defaults to the public endpoint.
	BaseURL string `yaml:"base-url,omitempty" json:"base-url,omitempty"`

	// Version is the anthropic-version header value.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// CacheBeta is the anthropic-beta header value enabling prompt caching.
	CacheBeta string `yaml:"cache-beta,omitempty" json:"cache-beta,omitempty"`

	// TimeoutSeconds bounds each upstream call. <= 0 uses the default of 60s.
	TimeoutSeconds int `yaml:"timeout-seconds,omitempty" json:"timeout-seconds,omitempty"`

	// ProxyURL is the URL of an optional proxy server for outbound requests.
	ProxyURL string `yaml:"proxy-url,omitempty" json:"proxy-url,omitempty"`
}

// PricingConfig holds per-million-token prices in USD used by the usage
// accountant. These are illustrative constants, not a billing source of truth.
type PricingConfig struct {
	// InputPerMTok is the standard input token price.
	InputPerMTok float64 `yaml:"input-per-mtok" json:"input_per_mtok"`

	// CacheReadPerMTok is the price for tokens served from the provider cache.
	CacheReadPerMTok float64 `yaml:"cache-read-per-mtok" json:"cache_read_per_mtok"`

	// CacheWritePerMTok is the price for tokens written into the provider cache.
	CacheWritePerMTok float64 `yaml:"cache-write-per-mtok" json:"cache_write_per_mtok"`

	// OutputPerMTok is the output token price.
	OutputPerMTok float64 `yaml:"output-per-mtok" json:"output_per_mtok"`
}

// ResilienceConfig configures the opt-in retry decorator. The relay core
// performs no retries itself; this wraps the invoker from the outside.
type ResilienceConfig struct {
	// RetryEnabled turns the retry decorator on.
	RetryEnabled bool `yaml:"retry-enabled" json:"retry_enabled"`

	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int `yaml:"max-retries,omitempty" json:"max_retries,omitempty"`

	// InitialDelayMs is the base delay before the first retry.
	InitialDelayMs int `yaml:"initial-delay-ms,omitempty" json:"initial_delay_ms,omitempty"`

	// MaxDelayMs caps the delay between retries.
	MaxDelayMs int `yaml:"max-delay-ms,omitempty" json:"max_delay_ms,omitempty"`

	// CircuitBreakerEnabled trips the upstream circuit after repeated failures.
	CircuitBreakerEnabled bool `yaml:"circuit-breaker-enabled" json:"circuit_breaker_enabled"`
}

// UsageDBConfig configures Postgres usage persistence.
type UsageDBConfig struct {
	// Enabled turns usage row persistence on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`

	// MaxConns limits the connection pool size.
	MaxConns int `yaml:"max-conns,omitempty" json:"max_conns,omitempty"`

	// FlushIntervalSeconds controls how often buffered rows are written.
	FlushIntervalSeconds int `yaml:"flush-interval-seconds,omitempty" json:"flush_interval_seconds,omitempty"`
}

// AuditConfig configures the in-memory audit ring.
type AuditConfig struct {
	// Enabled turns audit capture on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MaxEntries bounds the number of retained audit entries.
	MaxEntries int `yaml:"max-entries,omitempty" json:"max_entries,omitempty"`
}

// ManagementConfig configures the management endpoints.
type ManagementConfig struct {
	// Password grants access to management endpoints when compared equal.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// PasswordHash is a bcrypt hash checked instead of Password when set.
	PasswordHash string `yaml:"password-hash,omitempty" json:"password_hash,omitempty"`
}

// PerformanceConfig configures HTTP connection pooling.
type PerformanceConfig struct {
	HTTPPool HTTPPoolConfig `yaml:"http-pool,omitempty" json:"http_pool,omitempty"`
}

// HTTPPoolConfig holds connection pool tuning for upstream calls.
type HTTPPoolConfig struct {
	MaxIdleConns           int  `yaml:"max-idle-conns,omitempty" json:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost    int  `yaml:"max-idle-conns-per-host,omitempty" json:"max_idle_conns_per_host,omitempty"`
	MaxConnsPerHost        int  `yaml:"max-conns-per-host,omitempty" json:"max_conns_per_host,omitempty"`
	IdleConnTimeoutSeconds int  `yaml:"idle-conn-timeout-seconds,omitempty" json:"idle_conn_timeout_seconds,omitempty"`
	ForceHTTP2             bool `yaml:"force-http2,omitempty" json:"force_http2,omitempty"`
}

// LoggingConfig configures log output and rotation.
type LoggingConfig struct {
	// ToFile writes logs to a rotating file in addition to stderr.
	ToFile bool `yaml:"to-file" json:"to_file"`

	// Filename is the log file path. Defaults to logs/chatrelay.log.
	Filename string `yaml:"filename,omitempty" json:"filename,omitempty"`

	// MaxSizeMB rotates the log file after it reaches this size.
	MaxSizeMB int `yaml:"max-size-mb,omitempty" json:"max_size_mb,omitempty"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `yaml:"max-backups,omitempty" json:"max_backups,omitempty"`

	// MaxAgeDays is the maximum age of rotated files.
	MaxAgeDays int `yaml:"max-age-days,omitempty" json:"max_age_days,omitempty"`
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() *Config {
	return &Config{
		Port: 3001,
		Anthropic: AnthropicConfig{
			BaseURL:        "https://api.anthropic.com",
			Version:        "2023-06-01",
			CacheBeta:      "prompt-caching-2024-07-31",
			TimeoutSeconds: 60,
		},
		Pricing: DefaultPricing(),
		Resilience: ResilienceConfig{
			MaxRetries:     3,
			InitialDelayMs: 1000,
			MaxDelayMs:     30000,
		},
		Audit: AuditConfig{
			Enabled:    true,
			MaxEntries: 10000,
		},
		UsageDB: UsageDBConfig{
			FlushIntervalSeconds: 10,
		},
	}
}

// DefaultPricing returns Claude Haiku-class pricing in USD per million tokens.
// Cache reads cost 10% of the standard input price; cache writes cost 125%.
func DefaultPricing() PricingConfig {
	return PricingConfig{
		InputPerMTok:      0.80,
		CacheReadPerMTok:  0.08,
		CacheWritePerMTok: 1.00,
		OutputPerMTok:     4.00,
	}
}

// Load reads the configuration file at path and applies environment
// overrides. A missing file is not an error; defaults are used instead so the
// relay can run from environment variables alone.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded configuration.
// Environment values win over file values for credentials.
func (c *Config) applyEnv() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Anthropic.APIKey = key
	}
	if dsn := os.Getenv("CHATRELAY_USAGE_DSN"); dsn != "" {
		c.UsageDB.DSN = dsn
	}
	if pw := os.Getenv("CHATRELAY_MANAGEMENT_PASSWORD"); pw != "" {
		c.Management.Password = pw
	}
}

func (c *Config) fillDefaults() {
	if c.Port <= 0 {
		c.Port = 3001
	}
	if c.Anthropic.BaseURL == "" {
		c.Anthropic.BaseURL = "https://api.anthropic.com"
	}
	if c.Anthropic.Version == "" {
		c.Anthropic.Version = "2023-06-01"
	}
	if c.Anthropic.CacheBeta == "" {
		c.Anthropic.CacheBeta = "prompt-caching-2024-07-31"
	}
	if c.Anthropic.TimeoutSeconds <= 0 {
		c.Anthropic.TimeoutSeconds = 60
	}
	if c.Pricing == (PricingConfig{}) {
		c.Pricing = DefaultPricing()
	}
	if c.Audit.MaxEntries <= 0 {
		c.Audit.MaxEntries = 10000
	}
	if c.UsageDB.FlushIntervalSeconds <= 0 {
		c.UsageDB.FlushIntervalSeconds = 10
	}
	if c.Logging.Filename == "" {
		c.Logging.Filename = "logs/chatrelay.log"
	}
}
