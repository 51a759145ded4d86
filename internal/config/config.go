// Package config loads service configuration from a YAML file and
// LLMGATE_*-prefixed environment variables. Environment values override file
// values; file values override defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"llmgate/internal/models"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	setInt("LLMGATE_PORT", &config.Server.Port)
	setString("LLMGATE_HOST", &config.Server.Host)
	setDuration("LLMGATE_READ_TIMEOUT", &config.Server.ReadTimeout)
	setDuration("LLMGATE_WRITE_TIMEOUT", &config.Server.WriteTimeout)
	setDuration("LLMGATE_IDLE_TIMEOUT", &config.Server.IdleTimeout)
	setBool("LLMGATE_TLS_ENABLED", &config.Server.TLSEnabled)
	setString("LLMGATE_TLS_CERT_FILE", &config.Server.TLSCertFile)
	setString("LLMGATE_TLS_KEY_FILE", &config.Server.TLSKeyFile)

	// Provider configuration. The API key is deliberately env-first so it can
	// stay out of config files entirely.
	setString("LLMGATE_PROVIDER_BASE_URL", &config.Provider.BaseURL)
	setString("LLMGATE_PROVIDER_API_KEY", &config.Provider.APIKey)
	setString("LLMGATE_PROVIDER_MODEL", &config.Provider.Model)
	setString("LLMGATE_PROVIDER_FLASH_MODEL", &config.Provider.FlashModel)
	setString("LLMGATE_PROVIDER_PRO_MODEL", &config.Provider.ProModel)
	setFloat("LLMGATE_PROVIDER_TEMPERATURE", &config.Provider.Temperature)
	setInt("LLMGATE_PROVIDER_MAX_TOKENS", &config.Provider.MaxTokens)
	setDuration("LLMGATE_PROVIDER_TIMEOUT", &config.Provider.Timeout)

	// Flow control configuration
	setBool("LLMGATE_RATE_LIMIT_ENABLED", &config.Flow.RateLimit.Enabled)
	setInt("LLMGATE_RATE_LIMIT_RPM", &config.Flow.RateLimit.RequestsPerMinute)
	setInt("LLMGATE_RATE_LIMIT_BURST", &config.Flow.RateLimit.BurstSize)
	setBool("LLMGATE_RATE_LIMIT_WAIT", &config.Flow.RateLimit.WaitForCapacity)

	setBool("LLMGATE_QUOTA_ENABLED", &config.Flow.Quota.Enabled)
	setInt("LLMGATE_QUOTA_REQUESTS_PER_MINUTE", &config.Flow.Quota.RequestsPerMinute)
	setInt("LLMGATE_QUOTA_REQUESTS_PER_HOUR", &config.Flow.Quota.RequestsPerHour)
	setInt("LLMGATE_QUOTA_REQUESTS_PER_DAY", &config.Flow.Quota.RequestsPerDay)
	setInt("LLMGATE_QUOTA_TOKENS_PER_MINUTE", &config.Flow.Quota.TokensPerMinute)
	setInt("LLMGATE_QUOTA_TOKENS_PER_DAY", &config.Flow.Quota.TokensPerDay)

	setInt("LLMGATE_RETRY_MAX_RETRIES", &config.Flow.Retry.MaxRetries)
	setDuration("LLMGATE_RETRY_INITIAL_DELAY", &config.Flow.Retry.InitialDelay)
	setFloat("LLMGATE_RETRY_BACKOFF_FACTOR", &config.Flow.Retry.BackoffFactor)
	setDuration("LLMGATE_RETRY_MAX_WAIT", &config.Flow.Retry.MaxWait)
	setBool("LLMGATE_RETRY_JITTER", &config.Flow.Retry.Jitter)

	// Security configuration
	setString("LLMGATE_ADMIN_TOKEN", &config.Security.AdminToken)
	setBool("LLMGATE_INBOUND_RATE_LIMIT_ENABLED", &config.Security.RateLimit.Enabled)
	setInt("LLMGATE_INBOUND_RATE_LIMIT_RPM", &config.Security.RateLimit.RequestsPerMinute)
	setInt("LLMGATE_INBOUND_RATE_LIMIT_BURST", &config.Security.RateLimit.BurstSize)
	setDuration("LLMGATE_INBOUND_RATE_LIMIT_CLEANUP", &config.Security.RateLimit.CleanupInterval)

	// Audit store configuration
	setBool("LLMGATE_AUDIT_ENABLED", &config.Audit.Enabled)
	setString("LLMGATE_AUDIT_TYPE", &config.Audit.Type)
	setString("LLMGATE_AUDIT_PATH", &config.Audit.Path)
	setString("LLMGATE_AUDIT_DSN", &config.Audit.DSN)
	setInt("LLMGATE_AUDIT_MAX_RECORDS", &config.Audit.MaxRecords)

	// Logging configuration
	setString("LLMGATE_LOG_LEVEL", &config.Logging.Level)
	setString("LLMGATE_LOG_FORMAT", &config.Logging.Format)
	setString("LLMGATE_LOG_OUTPUT", &config.Logging.Output)
	setString("LLMGATE_LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics configuration
	setBool("LLMGATE_METRICS_ENABLED", &config.Metrics.Enabled)
	setString("LLMGATE_METRICS_PATH", &config.Metrics.Path)
	setInt("LLMGATE_METRICS_PORT", &config.Metrics.Port)

	// Observability configuration
	setString("LLMGATE_SERVICE_NAME", &config.Observability.ServiceName)
	setBool("LLMGATE_TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	setString("LLMGATE_TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	setString("LLMGATE_TRACING_OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
	setFloat("LLMGATE_TRACING_SAMPLE_RATE", &config.Observability.Tracing.SampleRate)
}

func setString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func setFloat(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func setBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		*target = strings.ToLower(v) == "true"
	}
}

func setDuration(key string, target *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Provider.APIKey = "your-provider-api-key-here"
	config.Metrics.Enabled = true
	config.Audit.Enabled = true
	config.Audit.Type = models.StoreTypeSQLite
	config.Audit.Path = "/var/lib/llmgate/audit.db"

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
