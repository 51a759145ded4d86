package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate_InvalidPort(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestConfigValidate_TLSRequiresFiles(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Server.TLSEnabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls_cert_file")
}

func TestConfigValidate_ProviderRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Provider.BaseURL = ""
	cfg.Provider.Model = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.base_url")
	assert.Contains(t, err.Error(), "provider.model")
}

func TestConfigValidate_RateLimitRate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Flow.RateLimit.RequestsPerMinute = -5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow.rate_limit.requests_per_minute")
}

func TestConfigValidate_RateLimitIgnoredWhenDisabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Flow.RateLimit.Enabled = false
	cfg.Flow.RateLimit.RequestsPerMinute = 0

	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_QuotaLimits(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Flow.Quota.TokensPerDay = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow.quota.tokens_per_day")
}

func TestConfigValidate_RetrySettings(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Flow.Retry.MaxRetries = -1
	cfg.Flow.Retry.BackoffFactor = 0.5
	cfg.Flow.Retry.MaxWait = time.Millisecond

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow.retry.max_retries")
	assert.Contains(t, err.Error(), "flow.retry.backoff_factor")
	assert.Contains(t, err.Error(), "flow.retry.max_wait")
}

func TestConfigValidate_AuditStore(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "sqlite requires path",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Type = StoreTypeSQLite
			},
			wantErr: "audit.path",
		},
		{
			name: "postgres requires dsn",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Type = StoreTypePostgres
			},
			wantErr: "audit.dsn",
		},
		{
			name: "unknown type",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Type = "etcd"
			},
			wantErr: "unsupported audit store type",
		},
		{
			name: "memory requires positive max records",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Type = StoreTypeMemory
				c.Audit.MaxRecords = 0
			},
			wantErr: "audit.max_records",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_LoggingLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestEffectiveBurst(t *testing.T) {
	rl := OutboundRateLimitConfig{RequestsPerMinute: 60}
	assert.Equal(t, 60, rl.EffectiveBurst())

	rl.BurstSize = 10
	assert.Equal(t, 10, rl.EffectiveBurst())
}
