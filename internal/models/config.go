// Package models - Service configuration and operational settings.
// This file defines configuration structures for all service components.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, provider, flow, etc.)
// - Environment-friendly defaults that work out of the box
// - Comprehensive validation to catch misconfigurations early
// - Flow-control limits live in one place so operators can reason about
//   provider budgets without reading code
package models

import (
	"errors"
	"fmt"
	"time"
)

// Audit store type constants
const (
	StoreTypeMemory   = "memory"
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Provider      ProviderConfig      `yaml:"provider" json:"provider"`           // Upstream LLM provider settings
	Flow          FlowConfig          `yaml:"flow" json:"flow"`                   // Outbound flow control (rate limit, quota, retry)
	Security      SecurityConfig      `yaml:"security" json:"security"`           // Inbound protection and admin access
	Audit         AuditConfig         `yaml:"audit" json:"audit"`                 // Call audit log persistence
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Logging and output configuration
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Prometheus metrics endpoint
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // OpenTelemetry settings
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

// ProviderConfig holds connection settings for the upstream LLM API.
type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	Model       string        `yaml:"model" json:"model"`
	FlashModel  string        `yaml:"flash_model" json:"flash_model"`
	ProModel    string        `yaml:"pro_model" json:"pro_model"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// FlowConfig groups the outbound flow-control settings that guard every
// provider call: token-bucket admission, multi-window quotas, and retry.
type FlowConfig struct {
	RateLimit OutboundRateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Quota     QuotaConfig             `yaml:"quota" json:"quota"`
	Retry     RetryConfig             `yaml:"retry" json:"retry"`
}

type OutboundRateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size" json:"burst_size"`
	// WaitForCapacity makes guarded calls block until bucket capacity is
	// available instead of failing fast with a retry-after hint.
	WaitForCapacity bool `yaml:"wait_for_capacity" json:"wait_for_capacity"`
}

type QuotaConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour" json:"requests_per_hour"`
	RequestsPerDay    int  `yaml:"requests_per_day" json:"requests_per_day"`
	TokensPerMinute   int  `yaml:"tokens_per_minute" json:"tokens_per_minute"`
	TokensPerDay      int  `yaml:"tokens_per_day" json:"tokens_per_day"`
}

type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay" json:"initial_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxWait       time.Duration `yaml:"max_wait" json:"max_wait"`
	Jitter        bool          `yaml:"jitter" json:"jitter"`
}

type SecurityConfig struct {
	// AdminToken guards the admin endpoints (key rotation, history clearing).
	// Admin endpoints are disabled when empty.
	AdminToken string                 `yaml:"admin_token" json:"admin_token"`
	RateLimit  InboundRateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// InboundRateLimitConfig protects the service's own HTTP API, keyed per client.
type InboundRateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// AuditConfig controls the optional call audit log. This persists outcomes of
// completed guarded calls, never limiter or quota state.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"`
	// Path is the SQLite database file (sqlite type only).
	Path string `yaml:"path" json:"path"`
	// DSN is the connection string (postgres type only).
	DSN string `yaml:"dsn" json:"dsn"`
	// MaxRecords bounds the number of retained records for the memory store.
	MaxRecords int `yaml:"max_records" json:"max_records"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // "stdout" or "otlp"
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig returns a configuration with conservative defaults that
// work out of the box against a Gemini-style provider.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Provider: ProviderConfig{
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
			Model:       "gemini-1.5-flash",
			FlashModel:  "gemini-1.5-flash",
			ProModel:    "gemini-pro",
			Temperature: 0.7,
			MaxTokens:   2048,
			Timeout:     30 * time.Second,
		},
		Flow: FlowConfig{
			RateLimit: OutboundRateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				BurstSize:         0, // defaults to requests_per_minute
				WaitForCapacity:   false,
			},
			Quota: QuotaConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				RequestsPerDay:    10000,
				TokensPerMinute:   10000,
				TokensPerDay:      100000,
			},
			Retry: RetryConfig{
				MaxRetries:    3,
				InitialDelay:  time.Second,
				BackoffFactor: 2.0,
				MaxWait:       60 * time.Second,
				Jitter:        true,
			},
		},
		Security: SecurityConfig{
			RateLimit: InboundRateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 120,
				BurstSize:         20,
				CleanupInterval:   5 * time.Minute,
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			Type:       StoreTypeMemory,
			MaxRecords: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "llmgate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "" {
			errs = append(errs, errors.New("server.tls_cert_file and server.tls_key_file are required when TLS is enabled"))
		}
	}

	if c.Provider.BaseURL == "" {
		errs = append(errs, errors.New("provider.base_url is required"))
	}
	if c.Provider.Model == "" {
		errs = append(errs, errors.New("provider.model is required"))
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, fmt.Errorf("provider.temperature must be between 0 and 2, got %g", c.Provider.Temperature))
	}
	if c.Provider.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("provider.max_tokens must be positive, got %d", c.Provider.MaxTokens))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, errors.New("provider.timeout must be positive"))
	}

	if c.Flow.RateLimit.Enabled {
		if c.Flow.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, fmt.Errorf("flow.rate_limit.requests_per_minute must be positive, got %d", c.Flow.RateLimit.RequestsPerMinute))
		}
		if c.Flow.RateLimit.BurstSize < 0 {
			errs = append(errs, fmt.Errorf("flow.rate_limit.burst_size must not be negative, got %d", c.Flow.RateLimit.BurstSize))
		}
	}
	if c.Flow.Quota.Enabled {
		for name, v := range map[string]int{
			"flow.quota.requests_per_minute": c.Flow.Quota.RequestsPerMinute,
			"flow.quota.requests_per_hour":   c.Flow.Quota.RequestsPerHour,
			"flow.quota.requests_per_day":    c.Flow.Quota.RequestsPerDay,
			"flow.quota.tokens_per_minute":   c.Flow.Quota.TokensPerMinute,
			"flow.quota.tokens_per_day":      c.Flow.Quota.TokensPerDay,
		} {
			if v <= 0 {
				errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
			}
		}
	}
	if c.Flow.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("flow.retry.max_retries must not be negative, got %d", c.Flow.Retry.MaxRetries))
	}
	if c.Flow.Retry.InitialDelay <= 0 {
		errs = append(errs, errors.New("flow.retry.initial_delay must be positive"))
	}
	if c.Flow.Retry.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("flow.retry.backoff_factor must be at least 1, got %g", c.Flow.Retry.BackoffFactor))
	}
	if c.Flow.Retry.MaxWait < c.Flow.Retry.InitialDelay {
		errs = append(errs, errors.New("flow.retry.max_wait must not be smaller than flow.retry.initial_delay"))
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, fmt.Errorf("security.rate_limit.requests_per_minute must be positive, got %d", c.Security.RateLimit.RequestsPerMinute))
		}
		if c.Security.RateLimit.BurstSize <= 0 {
			errs = append(errs, fmt.Errorf("security.rate_limit.burst_size must be positive, got %d", c.Security.RateLimit.BurstSize))
		}
		if c.Security.RateLimit.CleanupInterval <= 0 {
			errs = append(errs, errors.New("security.rate_limit.cleanup_interval must be positive"))
		}
	}

	if c.Audit.Enabled {
		switch c.Audit.Type {
		case StoreTypeMemory:
			if c.Audit.MaxRecords <= 0 {
				errs = append(errs, fmt.Errorf("audit.max_records must be positive for memory store, got %d", c.Audit.MaxRecords))
			}
		case StoreTypeSQLite:
			if c.Audit.Path == "" {
				errs = append(errs, errors.New("audit.path is required for sqlite store"))
			}
		case StoreTypePostgres:
			if c.Audit.DSN == "" {
				errs = append(errs, errors.New("audit.dsn is required for postgres store"))
			}
		default:
			errs = append(errs, fmt.Errorf("unsupported audit store type: %s", c.Audit.Type))
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level))
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		errs = append(errs, errors.New("logging.file_path is required when logging.output is file"))
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			errs = append(errs, fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
		}
		if c.Metrics.Path == "" {
			errs = append(errs, errors.New("metrics.path is required when metrics are enabled"))
		}
	}

	if c.Observability.Tracing.Enabled {
		switch c.Observability.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Errorf("observability.tracing.exporter must be stdout or otlp, got %q", c.Observability.Tracing.Exporter))
		}
		if c.Observability.Tracing.SampleRate < 0 || c.Observability.Tracing.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("observability.tracing.sample_rate must be between 0 and 1, got %g", c.Observability.Tracing.SampleRate))
		}
	}

	return errors.Join(errs...)
}

// EffectiveBurst returns the configured burst size, defaulting to the
// per-minute request rate when unset.
func (rl OutboundRateLimitConfig) EffectiveBurst() int {
	if rl.BurstSize > 0 {
		return rl.BurstSize
	}
	return rl.RequestsPerMinute
}
