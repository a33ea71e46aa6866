package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 10*time.Second, cfg.CriticalFetchTimeout)
	assert.Equal(t, time.Second, cfg.SyncGateDelay)
	assert.Equal(t, 6*time.Second, cfg.UndoTTL)
	assert.Equal(t, "@every 60s", cfg.DigestSchedule)
	assert.Equal(t, 4, cfg.DigestBucketHours)
	assert.Equal(t, 4*time.Hour, cfg.DigestActivityWindow)
	assert.Equal(t, 50, cfg.DigestActivityScan)
	assert.Equal(t, 200, cfg.ActivityLogLimit)
	assert.Equal(t, 1, cfg.ChainLength)
	assert.False(t, cfg.ServerQueueForSignedIn)
	assert.Equal(t, "127.0.0.1:8787", cfg.StatusAddr())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("LIFESYNC_ENVIRONMENT", "production")
	t.Setenv("LIFESYNC_UNDO_TTL", "3s")
	t.Setenv("LIFESYNC_CHAIN_LENGTH", "2")
	t.Setenv("LIFESYNC_SERVER_QUEUE_FOR_SIGNED_IN", "true")
	t.Setenv("LIFESYNC_POSTGRES_DSN", "postgres://x")

	cfg, err := New()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3*time.Second, cfg.UndoTTL)
	assert.Equal(t, 2, cfg.ChainLength)
	assert.True(t, cfg.ServerQueueForSignedIn)
	assert.Equal(t, "postgres://x", cfg.PostgresDSN)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bucket does not divide day", func(c *Config) { c.DigestBucketHours = 5 }},
		{"zero bucket", func(c *Config) { c.DigestBucketHours = 0 }},
		{"zero activity limit", func(c *Config) { c.ActivityLogLimit = 0 }},
		{"zero chain", func(c *Config) { c.ChainLength = 0 }},
		{"zero undo ttl", func(c *Config) { c.UndoTTL = 0 }},
		{"zero fetch timeout", func(c *Config) { c.CriticalFetchTimeout = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewForTesting()
			require.NoError(t, cfg.Validate())
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewForTesting(t *testing.T) {
	cfg := NewForTesting()
	assert.True(t, cfg.IsTesting())
	assert.Empty(t, cfg.PostgresDSN)
	assert.Less(t, cfg.SyncGateDelay, time.Second)
}

func TestNew_BadValue(t *testing.T) {
	t.Setenv("LIFESYNC_UNDO_TTL", "soon")
	_, err := New()
	assert.Error(t, err)
}
