// Package config provides configuration structs and utilities for the taskwatch client.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config represents the root configuration for the taskwatch client.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Stream        StreamConfig        `yaml:"stream"`
	Logging       LoggingConfig       `yaml:"logging"`
	Cache         CacheConfig         `yaml:"cache"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig holds configuration for the task REST API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StreamConfig holds configuration for the SSE subscription.
// Retry timing itself is fixed by the protocol constants in the stream
// package and deliberately not configurable here.
type StreamConfig struct {
	Endpoint       string        `yaml:"endpoint"`        // path under the API base URL
	ReadBufferSize int           `yaml:"read_buffer_size"`
	StallTimeout   time.Duration `yaml:"stall_timeout"` // no frame (incl. heartbeat) for this long counts as a drop
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CacheConfig holds configuration for the local task cache.
type CacheConfig struct {
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	MaxMemorySize int64         `yaml:"max_memory_size"` // Maximum in-memory cache size in bytes
	SnapshotPath  string        `yaml:"snapshot_path"`   // SQLite snapshot file; empty disables the disk tier
	CleanupPeriod time.Duration `yaml:"cleanup_period"`  // How often to sweep expired entries
}

// ObservabilityConfig holds configuration for tracing.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// Default configuration values.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultTimeout        = 30 * time.Second
	DefaultStreamEndpoint = "/api/v1/sse/tasks"
	DefaultReadBuffer     = 64 * 1024
	DefaultStallTimeout   = 90 * time.Second // three missed heartbeats
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"

	// Cache defaults
	DefaultCacheTTL           = 5 * time.Minute
	DefaultCacheMaxMemorySize = 16 * 1024 * 1024 // 16 MB
	DefaultCacheCleanupPeriod = time.Minute

	// Observability defaults
	DefaultTracingEnabled      = false
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "taskwatch"
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid log formats.
var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

// Valid tracing exporter types.
var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

// NewDefaultConfig creates a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Stream: StreamConfig{
			Endpoint:       DefaultStreamEndpoint,
			ReadBufferSize: DefaultReadBuffer,
			StallTimeout:   DefaultStallTimeout,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Cache: CacheConfig{
			DefaultTTL:    DefaultCacheTTL,
			MaxMemorySize: DefaultCacheMaxMemorySize,
			CleanupPeriod: DefaultCacheCleanupPeriod,
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      DefaultTracingEnabled,
				ExporterType: DefaultTracingExporterType,
				SampleRate:   DefaultTracingSampleRate,
				ServiceName:  DefaultTracingServiceName,
			},
		},
	}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	if err := c.API.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("api: %w", err))
	}
	if err := c.Stream.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("stream: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	if err := c.Observability.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks the API configuration.
func (a *APIConfig) Validate() error {
	if a.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not a valid URL", a.BaseURL)
	}
	if a.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// Validate checks the stream configuration.
func (s *StreamConfig) Validate() error {
	if s.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if s.ReadBufferSize <= 0 {
		return errors.New("read_buffer_size must be positive")
	}
	if s.StallTimeout < 0 {
		return errors.New("stall_timeout cannot be negative")
	}
	return nil
}

// Validate checks the logging configuration.
func (l *LoggingConfig) Validate() error {
	if !validLogLevels[l.Level] {
		return fmt.Errorf("invalid level %q", l.Level)
	}
	if !validLogFormats[l.Format] {
		return fmt.Errorf("invalid format %q", l.Format)
	}
	return nil
}

// Validate checks the cache configuration.
func (c *CacheConfig) Validate() error {
	if c.DefaultTTL <= 0 {
		return errors.New("default_ttl must be positive")
	}
	if c.MaxMemorySize <= 0 {
		return errors.New("max_memory_size must be positive")
	}
	if c.CleanupPeriod < 0 {
		return errors.New("cleanup_period cannot be negative")
	}
	return nil
}

// Validate checks the tracing configuration.
func (t *TracingConfig) Validate() error {
	if !validTracingExporterTypes[t.ExporterType] {
		return fmt.Errorf("invalid exporter_type %q", t.ExporterType)
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		return errors.New("sample_rate must be between 0.0 and 1.0")
	}
	if t.Enabled && t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
		return errors.New("otlp_endpoint is required for the otlp exporter")
	}
	return nil
}
